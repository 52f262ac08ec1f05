package domain

// AgencyContact is the escalation contact for an inter-agency station.
type AgencyContact struct {
	Agency    string `json:"agency"`
	Phone     string `json:"phone"`
	PortalURL string `json:"portal_url"`
}

// StationInfo describes a review station. InterAgency stations are reviewed
// outside the permitting department and carry their own contact; everything
// else is internal plan-check routing handled at the permit counter.
type StationInfo struct {
	Code        string
	Name        string
	Agency      string
	InterAgency bool
	Contact     *AgencyContact
}

// stationRegistry is the fixed station→agency mapping loaded at startup.
// Unknown codes fall back to an internal-routing entry so a new station in
// the feed never breaks diagnosis.
var stationRegistry = map[string]StationInfo{
	"INTAKE": {
		Code: "INTAKE", Name: "Permit Intake / Triage",
		Agency: "Department of Building Inspection",
	},
	"CPB": {
		Code: "CPB", Name: "Central Permit Bureau",
		Agency: "Department of Building Inspection",
	},
	"BLDG": {
		Code: "BLDG", Name: "Building Plan Check",
		Agency: "Department of Building Inspection",
	},
	"STRUCT": {
		Code: "STRUCT", Name: "Structural Plan Check",
		Agency: "Department of Building Inspection",
	},
	"MECH": {
		Code: "MECH", Name: "Mechanical Plan Check",
		Agency: "Department of Building Inspection",
	},
	"ELEC": {
		Code: "ELEC", Name: "Electrical Plan Check",
		Agency: "Department of Building Inspection",
	},
	"DISAB-ACC": {
		Code: "DISAB-ACC", Name: "Disability Access Review",
		Agency: "Department of Building Inspection",
	},
	"ENERGY": {
		Code: "ENERGY", Name: "Energy Compliance Review",
		Agency: "Department of Building Inspection",
	},
	"SFFD": {
		Code: "SFFD", Name: "Fire Plan Review",
		Agency: "Fire Department", InterAgency: true,
		Contact: &AgencyContact{
			Agency:    "Fire Department",
			Phone:     "(415) 558-3300",
			PortalURL: "https://sf-fire.org/permits",
		},
	},
	"DPH": {
		Code: "DPH", Name: "Health Department Review",
		Agency: "Department of Public Health", InterAgency: true,
		Contact: &AgencyContact{
			Agency:    "Department of Public Health",
			Phone:     "(415) 252-3800",
			PortalURL: "https://sfdph.org/plan-review",
		},
	},
	"PLANNING": {
		Code: "PLANNING", Name: "Planning / Zoning Review",
		Agency: "Planning Department", InterAgency: true,
		Contact: &AgencyContact{
			Agency:    "Planning Department",
			Phone:     "(628) 652-7300",
			PortalURL: "https://sfplanning.org/permits",
		},
	},
	"DPW-BSM": {
		Code: "DPW-BSM", Name: "Public Works Street-Use Review",
		Agency: "Public Works", InterAgency: true,
		Contact: &AgencyContact{
			Agency:    "Public Works",
			Phone:     "(415) 554-5810",
			PortalURL: "https://sfpublicworks.org/bsm",
		},
	},
	"PUC": {
		Code: "PUC", Name: "Water / Utilities Review",
		Agency: "Public Utilities Commission", InterAgency: true,
		Contact: &AgencyContact{
			Agency:    "Public Utilities Commission",
			Phone:     "(415) 551-4300",
			PortalURL: "https://sfpuc.org/development",
		},
	},
	"HOLD": {
		Code: "HOLD", Name: "Administrative Hold",
		Agency: "Department of Building Inspection",
	},
	"ISSUANCE": {
		Code: "ISSUANCE", Name: "Permit Issuance",
		Agency: "Department of Building Inspection",
	},
}

// StationInfoFor resolves a station code against the registry. Unknown
// codes return a same-agency placeholder keyed by the raw code.
func StationInfoFor(code string) StationInfo {
	if info, ok := stationRegistry[code]; ok {
		return info
	}
	return StationInfo{
		Code:   code,
		Name:   code,
		Agency: "Department of Building Inspection",
	}
}

// StationName returns the display name for a code.
func StationName(code string) string {
	return StationInfoFor(code).Name
}
