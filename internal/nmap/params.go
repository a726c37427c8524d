package nmap

// Scan types accepted by BasicScanParams.ScanType.
const (
	ScanQuick         = "quick"
	ScanComprehensive = "comprehensive"
	ScanStealth       = "stealth"
)

// BasicScanParams drives nmap_basic_scan.
type BasicScanParams struct {
	Targets  string `json:"targets"`
	Ports    string `json:"ports"`
	ScanType string `json:"scan_type"`
}

// ServiceDetectionParams drives nmap_service_detection.
type ServiceDetectionParams struct {
	Targets   string `json:"targets"`
	Ports     string `json:"ports"`
	Intensity int    `json:"intensity"`
}

// OSDetectionParams drives nmap_os_detection. Retries is the number of extra
// OS detection attempts after the first one.
type OSDetectionParams struct {
	Targets string `json:"targets"`
	Ports   string `json:"ports"`
	Retries int    `json:"retries"`
}

// ScriptScanParams drives nmap_script_scan.
type ScriptScanParams struct {
	Targets string `json:"targets"`
	Ports   string `json:"ports"`
	Scripts string `json:"scripts"`
}

// StealthScanParams drives nmap_stealth_scan.
type StealthScanParams struct {
	Targets        string `json:"targets"`
	Ports          string `json:"ports"`
	TimingTemplate string `json:"timing_template"`
}

// ComprehensiveScanParams drives nmap_comprehensive_scan.
type ComprehensiveScanParams struct {
	Targets        string `json:"targets"`
	Ports          string `json:"ports"`
	IncludeScripts bool   `json:"include_scripts"`
}

// PingScanParams drives nmap_ping_scan.
type PingScanParams struct {
	Targets string `json:"targets"`
	Method  string `json:"method"`
}

// PortScanParams drives nmap_port_scan. Ports has no preset default here.
type PortScanParams struct {
	Targets string `json:"targets"`
	Ports   string `json:"ports"`
	Method  string `json:"method"`
}

// VulnerabilityScanParams drives nmap_vulnerability_scan.
type VulnerabilityScanParams struct {
	Targets      string `json:"targets"`
	Ports        string `json:"ports"`
	VulnCategory string `json:"vuln_category"`
}

// NetworkDiscoveryParams drives nmap_network_discovery.
type NetworkDiscoveryParams struct {
	Targets         string `json:"targets"`
	DiscoveryMethod string `json:"discovery_method"`
	IncludePorts    bool   `json:"include_ports"`
}

// CustomScanParams drives nmap_custom_scan.
type CustomScanParams struct {
	Targets       string `json:"targets"`
	CustomOptions string `json:"custom_options"`
	OutputFormat  string `json:"output_format"`
}

// Default parameter sets. Decoding a request on top of a copy of these
// leaves omitted fields at their documented defaults.
var (
	DefaultBasicScan         = BasicScanParams{Ports: PortsCommon, ScanType: ScanQuick}
	DefaultServiceDetection  = ServiceDetectionParams{Ports: PortsCommon, Intensity: 7}
	DefaultOSDetection       = OSDetectionParams{Ports: PortsCommon, Retries: 2}
	DefaultScriptScan        = ScriptScanParams{Ports: PortsCommon, Scripts: "default"}
	DefaultStealthScan       = StealthScanParams{Ports: PortsCommon, TimingTemplate: "polite"}
	DefaultComprehensiveScan = ComprehensiveScanParams{Ports: PortsCommon, IncludeScripts: true}
	DefaultPingScan          = PingScanParams{Method: "both"}
	DefaultPortScan          = PortScanParams{Method: "syn"}
	DefaultVulnerabilityScan = VulnerabilityScanParams{Ports: PortsCommon, VulnCategory: "all"}
	DefaultNetworkDiscovery  = NetworkDiscoveryParams{DiscoveryMethod: "all", IncludePorts: true}
	DefaultCustomScan        = CustomScanParams{OutputFormat: "normal"}
)
