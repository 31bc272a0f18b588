package dataset

// Canonical role mask names.
const (
	RoleSS              = "SS"
	RoleSP              = "SP"
	RoleER              = "ER"
	RoleLR              = "LR"
	RoleBlank           = "Blank"
	RoleUnknown         = "Unknown"
	RoleMarkedToExclude = "MarkedToExclude"
)

// RoleOrder lists the sample roles in reporting order.
var RoleOrder = []string{RoleSS, RoleSP, RoleER, RoleLR, RoleBlank, RoleUnknown}

// RoleDisplayName returns the human-readable label for a role mask.
func RoleDisplayName(role string) string {
	switch role {
	case RoleSS:
		return "Study Sample"
	case RoleSP:
		return "Study Pool"
	case RoleER:
		return "External Reference"
	case RoleLR:
		return "Linearity Reference"
	case RoleBlank:
		return "Blank"
	case RoleMarkedToExclude:
		return "Marked for Exclusion"
	default:
		return "Unknown"
	}
}

// RoleMasks holds the boolean sample masks derived from SampleType and
// AssayRole.
type RoleMasks struct {
	SS              []bool
	SP              []bool
	ER              []bool
	LR              []bool
	Blank           []bool
	Unknown         []bool
	MarkedToExclude []bool
}

// Roles derives the role masks purely from the sample metadata and the
// current sample mask.
func (d *Dataset) Roles() RoleMasks {
	types := d.SampleTypes()
	roles := d.AssayRoles()
	skipped, _ := d.samples.Bools(ColSkipped)

	n := len(types)
	m := RoleMasks{
		SS:              make([]bool, n),
		SP:              make([]bool, n),
		ER:              make([]bool, n),
		LR:              make([]bool, n),
		Blank:           make([]bool, n),
		Unknown:         make([]bool, n),
		MarkedToExclude: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		switch RoleOf(types[i], roles[i]) {
		case RoleSS:
			m.SS[i] = true
		case RoleSP:
			m.SP[i] = true
		case RoleER:
			m.ER[i] = true
		case RoleLR:
			m.LR[i] = true
		case RoleBlank:
			m.Blank[i] = true
		default:
			m.Unknown[i] = true
		}
		m.MarkedToExclude[i] = !d.sampleMask[i] || (skipped != nil && skipped[i])
	}
	return m
}

// RoleOf returns the canonical role name of a sample.
func RoleOf(t SampleType, r AssayRole) string {
	switch {
	case t == StudySample && r == Assay:
		return RoleSS
	case t == StudyPool && r == PrecisionReference:
		return RoleSP
	case t == ExternalReference && r == PrecisionReference:
		return RoleER
	case t == StudyPool && r == LinearityReference:
		return RoleLR
	case t == ProceduralBlank:
		return RoleBlank
	default:
		return RoleUnknown
	}
}

// TableRoles returns the role name of every row of a sample table, such as
// the rows kept in the exclusion history.
func TableRoles(t Table) []string {
	types, _ := t.Strings(ColSampleType)
	roles, _ := t.Strings(ColAssayRole)
	out := make([]string, t.Rows())
	for i := range out {
		st, ar := SampleTypeUnset, AssayRoleUnset
		if i < len(types) {
			st, _ = ParseSampleType(types[i])
		}
		if i < len(roles) {
			ar, _ = ParseAssayRole(roles[i])
		}
		out[i] = RoleOf(st, ar)
	}
	return out
}

// Named returns the masks keyed by their canonical names.
func (m RoleMasks) Named() map[string][]bool {
	return map[string][]bool{
		RoleSS:              m.SS,
		RoleSP:              m.SP,
		RoleER:              m.ER,
		RoleLR:              m.LR,
		RoleBlank:           m.Blank,
		RoleUnknown:         m.Unknown,
		RoleMarkedToExclude: m.MarkedToExclude,
	}
}

// And returns the element-wise conjunction of equal-length masks.
func And(masks ...[]bool) []bool {
	if len(masks) == 0 {
		return nil
	}
	out := append([]bool(nil), masks[0]...)
	for _, m := range masks[1:] {
		for i := range out {
			out[i] = out[i] && m[i]
		}
	}
	return out
}

// Not returns the element-wise negation of a mask.
func Not(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, v := range mask {
		out[i] = !v
	}
	return out
}

// Count returns the number of true entries.
func Count(mask []bool) int {
	n := 0
	for _, v := range mask {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether any entry is true.
func Any(mask []bool) bool {
	for _, v := range mask {
		if v {
			return true
		}
	}
	return false
}
