package heroes

import "github.com/Sternrassler/marvel-heroes-client/pkg/catalog"

// Navigator receives navigation requests from the controllers. The
// controllers never hold navigation state themselves.
type Navigator interface {
	ShowHeroDetail(hero catalog.Hero)
	DismissHeroDetail()
}

// NopNavigator ignores all navigation requests.
type NopNavigator struct{}

func (NopNavigator) ShowHeroDetail(catalog.Hero) {}

func (NopNavigator) DismissHeroDetail() {}
