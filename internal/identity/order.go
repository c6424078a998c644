package identity

import (
	"encoding/json"
	"os"

	"github.com/samber/lo"
)

// ApplyOrder puts the accounts named in orderFile first, in file order,
// followed by the remaining accounts in their original order. A missing or
// undecodable order file leaves accounts unchanged.
func ApplyOrder(accounts []string, orderFile string) []string {
	order := loadOrder(orderFile)
	if len(order) == 0 || len(accounts) == 0 {
		return accounts
	}
	// Each order entry claims one matching account, so repeated accounts
	// are never dropped or duplicated.
	left := lo.CountValues(accounts)
	taken := map[string]int{}
	head := make([]string, 0, len(accounts))
	for _, name := range order {
		if left[name] > 0 {
			left[name]--
			taken[name]++
			head = append(head, name)
		}
	}
	tail := lo.Filter(accounts, func(name string, _ int) bool {
		if taken[name] > 0 {
			taken[name]--
			return false
		}
		return true
	})
	return append(head, tail...)
}

// SaveOrder replaces the order file with names.
func SaveOrder(orderFile string, names []string) error {
	if names == nil {
		names = []string{}
	}
	return writeJSON(orderFile, names)
}

// RenameInOrder replaces oldName in the order file. Nothing is written when
// the file does not mention it.
func RenameInOrder(orderFile, oldName, newName string) error {
	order := loadOrder(orderFile)
	if !lo.Contains(order, oldName) {
		return nil
	}
	return SaveOrder(orderFile, lo.Map(order, func(n string, _ int) string {
		if n == oldName {
			return newName
		}
		return n
	}))
}

// RemoveFromOrder drops name from the order file.
func RemoveFromOrder(orderFile, name string) error {
	order := loadOrder(orderFile)
	if !lo.Contains(order, name) {
		return nil
	}
	return SaveOrder(orderFile, lo.Without(order, name))
}

func loadOrder(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil
	}
	return order
}
