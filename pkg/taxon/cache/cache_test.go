package cache

import (
	"reflect"
	"testing"

	"github.com/cognitext/taxon/pkg/taxon/predict"
)

func TestKeyDistinguishesGenerations(t *testing.T) {
	opts := predict.ShapeOptions{Amount: 3}
	if Key(1, opts, "clear skies") == Key(2, opts, "clear skies") {
		t.Error("keys from different generations must differ")
	}
}

func TestKeyDistinguishesOptions(t *testing.T) {
	a := Key(1, predict.ShapeOptions{Amount: 3}, "clear skies")
	b := Key(1, predict.ShapeOptions{Amount: 3, Capitalize: true}, "clear skies")
	c := Key(1, predict.ShapeOptions{Adaptive: true}, "clear skies")
	if a == b || a == c || b == c {
		t.Errorf("shaping options must be part of the key: %q %q %q", a, b, c)
	}
}

func TestSortedWeightPartsAreDeterministic(t *testing.T) {
	weights := map[string]float64{"beta": 2, "alpha": 1, "gamma": 0.5}
	want := []string{"alpha=1", "beta=2", "gamma=0.5"}
	for i := 0; i < 10; i++ {
		if got := SortedWeightParts(weights); !reflect.DeepEqual(got, want) {
			t.Fatalf("parts = %v, want %v", got, want)
		}
	}
}

func TestCacheGetAddPurge(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatal(err)
	}

	key := Key(1, predict.ShapeOptions{}, "text")
	if _, ok := c.Get(key); ok {
		t.Error("empty cache reported a hit")
	}

	results := []predict.Result{{Label: "Weather", Score: 0.9}}
	c.Add(key, results)
	got, ok := c.Get(key)
	if !ok || !reflect.DeepEqual(got, results) {
		t.Errorf("Get = %v, %v; want stored results", got, ok)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after purge = %d, want 0", c.Len())
	}
}

func TestCacheEvictsBeyondCapacity(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	c.Add("a", nil)
	c.Add("b", nil)
	c.Add("c", nil)
	if c.Len() != 2 {
		t.Errorf("Len = %d, want capacity-bounded 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived past capacity")
	}
}

func TestNewZeroSizeUsesDefault(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < DefaultSize; i++ {
		c.Add(Key(uint64(i), predict.ShapeOptions{}), nil)
	}
	if c.Len() != DefaultSize {
		t.Errorf("Len = %d, want %d", c.Len(), DefaultSize)
	}
}
