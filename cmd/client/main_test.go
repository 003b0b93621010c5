package main

import (
	"math/rand"
	"testing"
)

func TestRandomStrokeIsValid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		d := randomStroke(rng)
		if err := d.Stroke("bot").Validate(); err != nil {
			t.Fatalf("stroke %d invalid: %v", i, err)
		}
		if len(d.Points) < 3 {
			t.Fatalf("stroke %d too short", i)
		}
	}
}
