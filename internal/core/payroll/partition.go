package payroll

// Partition は明細を継続在籍者・入社者・退職者に分割した結果です。
type Partition struct {
	Continuing []EmployeeSnapshot
	Starters   []EmployeeSnapshot
	Leavers    []EmployeeSnapshot
}

// PartitionSnapshots は明細を順序を保ったまま 3 つの集合に分割します。
// 入社と退職が同一期間の社員は退職者として扱います。
func PartitionSnapshots(snapshots []EmployeeSnapshot) Partition {
	var p Partition
	for _, s := range snapshots {
		switch {
		case s.IsLeaver:
			p.Leavers = append(p.Leavers, s)
		case s.IsStarter:
			p.Starters = append(p.Starters, s)
		default:
			p.Continuing = append(p.Continuing, s)
		}
	}
	return p
}

// Len は分割後の総件数を返します。
func (p Partition) Len() int {
	return len(p.Continuing) + len(p.Starters) + len(p.Leavers)
}

// Totals は明細の合計額です。
type Totals struct {
	Employees   int
	GrossSalary int64
	Tax         int64
	NetSalary   int64
}

// SumSnapshots は明細の合計額を集計します。
func SumSnapshots(snapshots []EmployeeSnapshot) Totals {
	t := Totals{Employees: len(snapshots)}
	for _, s := range snapshots {
		t.GrossSalary += s.GrossSalary
		t.Tax += s.Tax
		t.NetSalary += s.NetSalary
	}
	return t
}
