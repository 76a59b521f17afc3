package domain

// PurchaseSnapshot is an independently persisted copy of the cart's line
// items taken when checkout is initiated. It survives the cart being
// cleared so the post-checkout page can describe what was bought.
type PurchaseSnapshot struct {
	Items []LineItem `json:"items"`
}
