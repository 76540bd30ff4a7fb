package payroll

import (
	"fmt"
	"testing"
)

func TestPartitionSnapshots_AllContinuing(t *testing.T) {
	t.Parallel()

	snapshots := make([]EmployeeSnapshot, 0, 10)
	for i := 0; i < 10; i++ {
		snapshots = append(snapshots, EmployeeSnapshot{EmployeeID: fmt.Sprintf("emp-%d", i)})
	}

	p := PartitionSnapshots(snapshots)
	if len(p.Continuing) != 10 || len(p.Starters) != 0 || len(p.Leavers) != 0 {
		t.Fatalf("unexpected partition sizes: %d/%d/%d", len(p.Continuing), len(p.Starters), len(p.Leavers))
	}
}

func TestPartitionSnapshots_DisjointAndComplete(t *testing.T) {
	t.Parallel()

	snapshots := []EmployeeSnapshot{
		{EmployeeID: "a"},
		{EmployeeID: "b", IsStarter: true},
		{EmployeeID: "c", IsLeaver: true},
		{EmployeeID: "d", IsStarter: true, IsLeaver: true},
		{EmployeeID: "e"},
	}

	p := PartitionSnapshots(snapshots)
	if p.Len() != len(snapshots) {
		t.Fatalf("expected %d snapshots after partition, got %d", len(snapshots), p.Len())
	}

	seen := make(map[string]int)
	for _, group := range [][]EmployeeSnapshot{p.Continuing, p.Starters, p.Leavers} {
		for _, s := range group {
			seen[s.EmployeeID]++
		}
	}
	for _, s := range snapshots {
		if seen[s.EmployeeID] != 1 {
			t.Fatalf("employee %s appears %d times", s.EmployeeID, seen[s.EmployeeID])
		}
	}

	if len(p.Leavers) != 2 || p.Leavers[1].EmployeeID != "d" {
		t.Fatalf("expected starter+leaver to be classified as leaver, got %+v", p.Leavers)
	}
	if p.Continuing[0].EmployeeID != "a" || p.Continuing[1].EmployeeID != "e" {
		t.Fatalf("expected order to be preserved, got %+v", p.Continuing)
	}
}

func TestSumSnapshots(t *testing.T) {
	t.Parallel()

	totals := SumSnapshots([]EmployeeSnapshot{
		{GrossSalary: 300000, Tax: 50000, NetSalary: 250000},
		{GrossSalary: 200000, Tax: 30000, NetSalary: 170000},
	})

	if totals.Employees != 2 || totals.GrossSalary != 500000 || totals.Tax != 80000 || totals.NetSalary != 420000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
