package memory

import (
	"slices"

	"github.com/dukerupert/kirana/internal/domain"
)

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Referrals = slices.Clone(u.Referrals)
	c.Rewards = slices.Clone(u.Rewards)
	return &c
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Images = slices.Clone(p.Images)
	c.Inventory = slices.Clone(p.Inventory)
	return &c
}

func cloneCoupon(cp *domain.Coupon) *domain.Coupon {
	c := *cp
	c.UsedBy = slices.Clone(cp.UsedBy)
	return &c
}

func cloneCart(cart *domain.Cart) *domain.Cart {
	c := *cart
	c.Items = slices.Clone(cart.Items)
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}
