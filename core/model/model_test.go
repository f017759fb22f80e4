package model

import "testing"

func TestPriorityRankOrder(t *testing.T) {
	order := []Priority{PriorityEmergency, PriorityExpress, PriorityMail, PriorityPassenger, PriorityFreight, PriorityMaintenance}
	for i := 1; i < len(order); i++ {
		if !order[i-1].Outranks(order[i]) {
			t.Fatalf("expected %s to outrank %s", order[i-1], order[i])
		}
	}
	if Priority("UNKNOWN").Rank() != 7 {
		t.Fatalf("unknown priority should rank last")
	}
}

func TestTrainValidate(t *testing.T) {
	ok := Train{ID: "T1", MaxSpeedKmh: 120, RouteSections: []string{"S1"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	noRoute := Train{ID: "T1", MaxSpeedKmh: 120}
	if noRoute.Validate() == nil {
		t.Fatalf("expected error for empty route")
	}
	noSpeed := Train{ID: "T1", RouteSections: []string{"S1"}}
	if noSpeed.Validate() == nil {
		t.Fatalf("expected error for zero speed")
	}
}

func TestCommonSectionsAndStations(t *testing.T) {
	a := Train{RouteSections: []string{"S1", "S2", "S3"}, OriginStation: "A", DestinationStation: "B"}
	b := Train{RouteSections: []string{"S3", "S2"}, OriginStation: "C", DestinationStation: "B"}
	got := a.CommonSections(b)
	if len(got) != 2 || got[0] != "S2" || got[1] != "S3" {
		t.Fatalf("unexpected common sections %v", got)
	}
	if !a.SharesStation(b) {
		t.Fatalf("expected shared destination")
	}
	if a.SectionIndex("S3") != 2 || a.SectionIndex("X") != -1 {
		t.Fatalf("unexpected section index")
	}
}

func TestConstraintParams(t *testing.T) {
	c := Constraint{Parameters: map[string]string{"n": "12", "f": "1.5", "list": "S1, S2,,S3", "bad": "x"}}
	if n, err := c.Int("n", 0); err != nil || n != 12 {
		t.Fatalf("int param: %v %v", n, err)
	}
	if n, _ := c.Int("missing", 7); n != 7 {
		t.Fatalf("expected default")
	}
	if _, err := c.Int("bad", 0); err == nil {
		t.Fatalf("expected parse error")
	}
	if f, _ := c.Float("f", 0); f != 1.5 {
		t.Fatalf("float param: %v", f)
	}
	if l := c.List("list"); len(l) != 3 || l[2] != "S3" {
		t.Fatalf("list param: %v", l)
	}
}

func TestConfidenceMapping(t *testing.T) {
	cases := map[Status]float64{
		StatusOptimal:           1.0,
		StatusFeasible:          0.85,
		StatusTimeLimitExceeded: 0.75,
		StatusInfeasible:        0,
		StatusError:             0,
	}
	for s, want := range cases {
		if got := Confidence(s); got != want {
			t.Fatalf("%s: expected %v got %v", s, want, got)
		}
	}
}

func TestTraitsDefaults(t *testing.T) {
	tr := Train{}
	if tr.Traits().PowerKW != 2000 {
		t.Fatalf("expected default power")
	}
	tr.Characteristics = &Characteristics{RequiredPlatforms: []string{"2"}}
	if tr.Traits().PowerKW != 2000 || len(tr.Traits().RequiredPlatforms) != 1 {
		t.Fatalf("expected power fallback with platforms kept")
	}
}
