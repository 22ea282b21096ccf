package pricing

// ShippingFor returns the shipping charge for a subtotal.
// Orders strictly above the threshold ship free; everything else pays the flat fee.
func (p Policy) ShippingFor(subtotal int64) int64 {
	if subtotal > p.FreeShippingThreshold {
		return 0
	}
	return p.FlatShippingFee
}
