package escore

import "testing"

func TestPositionOrdering(t *testing.T) {
	cases := []struct {
		a, b Position
		want int
	}{
		{Position{1, 0}, Position{2, 0}, -1},
		{Position{2, 0}, Position{1, 0}, 1},
		{Position{1, 5}, Position{1, 5}, 0},
		{Position{1, 1}, Position{1, 2}, -1},
	}
	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Fatalf("%+v.Compare(%+v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestPositionStartEndSentinels(t *testing.T) {
	if PositionStart().LessOrEqual(PositionEnd()) {
		t.Fatal("start <= end must be false because end = (-1,-1)")
	}
}

func TestExpectedVersionRoundTrip(t *testing.T) {
	cases := []ExpectedVersion{
		ExpectedAny(), ExpectedStreamExists(), ExpectedNoStream(),
		ExpectedExact(0), ExpectedExact(42), ExpectedExact(-100),
	}
	for _, v := range cases {
		got := ExpectedVersionFromInt64(v.ToInt64())
		if got != v {
			t.Fatalf("round trip of %+v produced %+v", v, got)
		}
	}
}
