package cart

// Line is one cart entry keyed by its stable product key. Display fields are
// denormalized at add time so the cart page renders without catalog round
// trips. VariantID stays empty until the first reconciliation resolves it.
type Line struct {
	Key             string            `json:"key"`
	Handle          string            `json:"handle"`
	Title           string            `json:"title"`
	ImageURL        string            `json:"image_url,omitempty"`
	Price           string            `json:"price"`
	Currency        string            `json:"currency,omitempty"`
	Quantity        int               `json:"quantity"`
	VariantID       string            `json:"variant_id,omitempty"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
	Unresolved      bool              `json:"unresolved,omitempty"`
	PriceUnparsed   bool              `json:"price_unparsed,omitempty"`
}

// LineInput is the caller-supplied shape for adding or merging a line.
// VariantID is optional: when set it pins the line to that variant instead
// of the lazily resolved default, and re-sending a different one overwrites
// the previous choice.
type LineInput struct {
	Key             string            `json:"key" validate:"required"`
	Handle          string            `json:"handle" validate:"required"`
	Title           string            `json:"title"`
	ImageURL        string            `json:"image_url"`
	Price           string            `json:"price"`
	Currency        string            `json:"currency"`
	Quantity        int               `json:"quantity"`
	VariantID       string            `json:"variant_id"`
	SelectedOptions map[string]string `json:"selected_options"`
}

// View is the cart as rendered to the storefront. Total carries the
// authoritative remote amount when a cost snapshot is current, otherwise the
// deterministic local subtotal. Stale is set when the snapshot could not be
// refreshed after the latest mutation.
type View struct {
	Lines        []Line `json:"lines"`
	Subtotal     string `json:"subtotal"`
	Discount     string `json:"discount"`
	Total        string `json:"total"`
	Currency     string `json:"currency,omitempty"`
	AppliedCode  string `json:"applied_code,omitempty"`
	RemoteCartID string `json:"remote_cart_id,omitempty"`
	Stale        bool   `json:"stale,omitempty"`
}
