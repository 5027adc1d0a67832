package ledger

// Badge is a lifetime-points milestone.
type Badge struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Notes     string `json:"notes"`
	Threshold int64  `json:"threshold"`
	Earned    bool   `json:"earned"`
	Remaining int64  `json:"remaining"`
}

var badgeCatalog = []Badge{
	{ID: 1, Name: "Eco Warrior", Icon: "leaf", Notes: "Recycled 5+ items", Threshold: 5},
	{ID: 2, Name: "Recycle Master", Icon: "star", Notes: "Recycled 10+ items", Threshold: 10},
	{ID: 3, Name: "Waste Reducer", Icon: "trash", Notes: "Recycled 25+ items", Threshold: 25},
	{ID: 4, Name: "Green Innovator", Icon: "bulb", Notes: "Recycled 50+ items", Threshold: 50},
	{ID: 5, Name: "Sustainability Champion", Icon: "trophy", Notes: "Recycled 100+ items", Threshold: 100},
}

// Badges evaluates every badge against lifetime points.
func Badges(lifetimePoints int64) []Badge {
	out := make([]Badge, len(badgeCatalog))
	for i, b := range badgeCatalog {
		b.Earned = lifetimePoints >= b.Threshold
		if !b.Earned {
			b.Remaining = b.Threshold - lifetimePoints
		}
		out[i] = b
	}
	return out
}
