package mutation

import "testing"

func TestLog_Filter(t *testing.T) {
	var l Log
	l.Add(Record{Op: OpInsert, Target: "n1", Tag: "link"})
	l.Add(Record{Op: OpRuleInsert, Target: "s1", Value: `@import url("a.css");`})
	l.Add(Record{Op: OpInsert, Target: "n2", Tag: "link"})

	if got := len(l.Records()); got != 3 {
		t.Fatalf("Records: got %d, want 3", got)
	}
	ins := l.Filter(OpInsert)
	if len(ins) != 2 || ins[0].Target != "n1" || ins[1].Target != "n2" {
		t.Fatalf("Filter(insert): got %+v", ins)
	}
	if got := l.Filter(OpReload); got != nil {
		t.Fatalf("Filter(reload): got %+v, want nil", got)
	}

	l.Reset()
	if got := len(l.Records()); got != 0 {
		t.Fatalf("after Reset: got %d records", got)
	}
}

func TestLog_RecordsIsACopy(t *testing.T) {
	var l Log
	l.Add(Record{Op: OpAttr, Target: "n1", Name: "href", Value: "a"})
	recs := l.Records()
	recs[0].Value = "mutated"
	if l.Records()[0].Value != "a" {
		t.Fatal("Records returned the backing slice")
	}
}
