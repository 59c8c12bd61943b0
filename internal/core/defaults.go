package core

// DefaultCategories is the template set seeded as owner-less rows and copied to
// every new account. The storage migrations carry the same values.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Food", Color: "#ef4444", Icon: "utensils"},
		{Name: "Travel", Color: "#3b82f6", Icon: "car"},
		{Name: "Shopping", Color: "#8b5cf6", Icon: "shopping-bag"},
		{Name: "Entertainment", Color: "#f59e0b", Icon: "film"},
		{Name: "Bills", Color: "#10b981", Icon: "file-invoice"},
		{Name: "Healthcare", Color: "#06b6d4", Icon: "heartbeat"},
		{Name: "Education", Color: "#ec4899", Icon: "book"},
		{Name: "Other", Color: "#64748b", Icon: "circle"},
	}
}
