package scanner

import "bytes"

// ID accepts both string and numeric identifiers; the source API is not
// consistent about which it returns.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = ID(bytes.Trim(b, `"`))
	return nil
}

func (id ID) String() string { return string(id) }

// Site is one scan site from the site listing.
type Site struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Assets       int    `json:"assets"`
	Description  string `json:"description"`
	Importance   string `json:"importance"`
	LastScanTime string `json:"lastScanTime"`
}

// Address is a network address attached to an asset.
type Address struct {
	IP  string `json:"ip"`
	MAC string `json:"mac"`
}

// Asset is one scanned host within a site.
type Asset struct {
	ID        ID        `json:"id"`
	HostName  string    `json:"hostName"`
	Addresses []Address `json:"addresses"`
}

// PrimaryIP returns the asset's first address when present.
func (a Asset) PrimaryIP() string {
	if len(a.Addresses) == 0 {
		return ""
	}
	return a.Addresses[0].IP
}

// CVSSVector carries the scoring vector for one CVSS version.
type CVSSVector struct {
	Vector string `json:"vector"`
}

// CVSS groups per-version scoring data.
type CVSS struct {
	V2 *CVSSVector `json:"v2"`
}

// Vulnerability is the detail record for one finding.
type Vulnerability struct {
	ID       ID     `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	CVSS     *CVSS  `json:"cvss"`
}

// Vector returns the CVSS v2 vector or "N/A" when absent.
func (v Vulnerability) Vector() string {
	if v.CVSS == nil || v.CVSS.V2 == nil || v.CVSS.V2.Vector == "" {
		return "N/A"
	}
	return v.CVSS.V2.Vector
}

// SolutionSteps is the remediation text for one solution resource.
type SolutionSteps struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Solution is one remediation proposal.
type Solution struct {
	Steps SolutionSteps `json:"steps"`
}

// VulnerabilityRef is an entry in a per-asset vulnerability listing.
type VulnerabilityRef struct {
	ID ID `json:"id"`
}

// AssetFindings pairs an asset with its nested vulnerability entries, as it
// appears in pre-fetched scan documents.
type AssetFindings struct {
	ID              ID                 `json:"id"`
	Vulnerabilities []VulnerabilityRef `json:"vulnerabilities"`
}

// BatchDocument is an already-fetched scan export: a list of asset resources,
// each with nested vulnerability entries.
type BatchDocument struct {
	Resources []AssetFindings `json:"resources"`
}

type siteList struct {
	Resources []Site `json:"resources"`
}

type assetList struct {
	Resources []Asset `json:"resources"`
}

type vulnRefList struct {
	Resources []VulnerabilityRef `json:"resources"`
}

type solutionList struct {
	Resources []Solution `json:"resources"`
}
