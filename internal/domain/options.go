package domain

// Sizes and Colors are the selections offered on the product page.
var (
	Sizes  = []string{"XS", "S", "M", "L", "XL", "XXL"}
	Colors = []string{"Black", "White", "Blue", "Red", "Green"}
)

func IsKnownSize(s string) bool {
	return contains(Sizes, s)
}

func IsKnownColor(c string) bool {
	return contains(Colors, c)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
