// Command storetest is a quick manual check of both label stores.
package main

import (
	"fmt"
	"log"

	"github.com/kittclouds/labelgraph/internal/store"
	"github.com/kittclouds/labelgraph/pkg/label"
)

func main() {
	fmt.Println("Testing MemStore...")
	exercise(store.NewMemStore())

	fmt.Println("\nTesting SQLiteStore...")
	s, err := store.NewSQLiteStore()
	if err != nil {
		log.Fatalf("NewSQLiteStore failed: %v", err)
	}
	exercise(s)

	fmt.Println("\n✅ All checks passed!")
}

func exercise(s store.Storer) {
	defer s.Close()

	l := label.Label{Key: "smoke-1", Category: "HOT", Left: 1, Right: 2}
	res, err := store.Apply(s, "smoke", []label.Label{l}, nil, 1234567890)
	if err != nil {
		log.Fatalf("Apply failed: %v", err)
	}
	if res.Written != 1 {
		log.Fatalf("Apply expected 1 write, got %d", res.Written)
	}
	fmt.Println("  ✓ Apply works")

	l.Version++
	l.Category = "COLD"
	if _, err := store.Apply(s, "smoke", []label.Label{l}, nil, 1234567891); err != nil {
		log.Fatalf("Apply failed: %v", err)
	}
	versions, err := s.ListLabelVersions("smoke-1")
	if err != nil {
		log.Fatalf("ListLabelVersions failed: %v", err)
	}
	if len(versions) != 2 || !versions[0].IsCurrent {
		log.Fatalf("ListLabelVersions expected 2 versions, newest current, got %d", len(versions))
	}
	fmt.Println("  ✓ version history works")

	count, err := s.CountLabels("smoke")
	if err != nil {
		log.Fatalf("CountLabels failed: %v", err)
	}
	if count != 1 {
		log.Fatalf("CountLabels expected 1, got %d", count)
	}
	fmt.Println("  ✓ CountLabels works")

	res, err = store.Apply(s, "smoke", nil, []string{"smoke-1"}, 1234567892)
	if err != nil {
		log.Fatalf("Apply failed: %v", err)
	}
	if res.Deleted != 1 {
		log.Fatalf("Apply expected 1 delete, got %d", res.Deleted)
	}
	fmt.Println("  ✓ delete works")
}
