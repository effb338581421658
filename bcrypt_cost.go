//go:build !race

package registration

func passwordHashCost() int {
	return 14
}
