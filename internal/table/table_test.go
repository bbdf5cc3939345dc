package table

import "testing"

func TestAppendAndCell(t *testing.T) {
	tbl := New("test", "a", "b", "c")
	tbl.Append("x", int64(1), nil)

	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}
	if got := tbl.Cell(0, "a"); got != "x" {
		t.Errorf("Cell(0, a) = %v, want x", got)
	}
	if got := tbl.Cell(0, "b"); got != int64(1) {
		t.Errorf("Cell(0, b) = %v, want 1", got)
	}
	if got := tbl.Cell(0, "c"); got != nil {
		t.Errorf("Cell(0, c) = %v, want nil", got)
	}
	if got := tbl.Cell(0, "missing"); got != nil {
		t.Errorf("Cell(0, missing) = %v, want nil", got)
	}
}

func TestAppendWidthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on row width mismatch")
		}
	}()
	tbl := New("test", "a", "b")
	tbl.Append("only-one")
}

func TestReset(t *testing.T) {
	tbl := New("test", "a")
	tbl.Append("x")
	tbl.Reset()
	if tbl.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", tbl.Len())
	}
	tbl.Append("y")
	if tbl.Len() != 1 {
		t.Errorf("Len after re-append = %d, want 1", tbl.Len())
	}
}

func TestAppendFrom(t *testing.T) {
	dst := New("dst", "a", "b")
	src := New("src", "a", "b")
	dst.Append("1", "2")
	src.Append("3", "4")

	if err := dst.AppendFrom(src); err != nil {
		t.Fatalf("AppendFrom failed: %v", err)
	}
	if dst.Len() != 2 {
		t.Errorf("Len = %d, want 2", dst.Len())
	}

	bad := New("bad", "a")
	if err := dst.AppendFrom(bad); err == nil {
		t.Error("expected error for column count mismatch")
	}
}

func TestRecords(t *testing.T) {
	tbl := New("test", "a", "b", "c", "d")
	tbl.Append(nil, int64(42), 3.5, true)

	records := tbl.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	want := []string{"", "42", "3.5", "true"}
	for i, w := range want {
		if records[0][i] != w {
			t.Errorf("records[0][%d] = %q, want %q", i, records[0][i], w)
		}
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{true, "true"},
		{false, "false"},
		{7, "7"},
		{int64(-3), "-3"},
		{1.5, "1.5"},
		{float64(100), "100"},
	}
	for _, c := range cases {
		if got := FormatValue(c.in); got != c.want {
			t.Errorf("FormatValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
