package service

import "github.com/FlemingJohn/FlexiGift/internal/model"

// isOwner reports whether the caller is the registry owner.
func isOwner(state *model.LedgerState, caller string) bool {
	return state != nil && caller == state.Owner
}

// isGiver reports whether the caller created the gift card.
func isGiver(card *model.GiftCard, caller string) bool {
	return card != nil && caller == card.Giver
}
