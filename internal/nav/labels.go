package nav

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// DefaultLanguage is the language whose labels the sidebar dispatches on.
var DefaultLanguage = language.French

// Languages lists the label tables available.
var Languages = []language.Tag{language.French, language.English}

var labels = buildCatalog()

var byLabel = indexLabels()

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(DefaultLanguage))

	fr := language.French
	b.SetString(fr, Item{Panel: Home}.key(), "Accueil")
	b.SetString(fr, Item{Panel: Subscription}.key(), "Souscriptions")
	b.SetString(fr, Item{Panel: Vault}.key(), "Vault MultiSig")
	b.SetString(fr, Item{Panel: Approve}.key(), "Approve")
	b.SetString(fr, LogoutItem.key(), "Déconnexion")

	en := language.English
	b.SetString(en, Item{Panel: Home}.key(), "Home")
	b.SetString(en, Item{Panel: Subscription}.key(), "Subscriptions")
	b.SetString(en, Item{Panel: Vault}.key(), "MultiSig Vault")
	b.SetString(en, Item{Panel: Approve}.key(), "Approve")
	b.SetString(en, LogoutItem.key(), "Log out")

	return b
}

func indexLabels() map[string]Item {
	items := append(PanelItems(), LogoutItem)
	idx := make(map[string]Item, len(items)*len(Languages))
	for _, tag := range Languages {
		for _, item := range items {
			idx[Label(item, tag)] = item
		}
	}
	return idx
}

// Label renders the sidebar label of item in tag, falling back to French.
func Label(item Item, tag language.Tag) string {
	p := message.NewPrinter(tag, message.Catalog(labels))
	return p.Sprintf(item.key())
}

// Lookup maps a rendered label, in any supported language, back to its item.
func Lookup(label string) (Item, bool) {
	item, ok := byLabel[label]
	return item, ok
}
