package nmap

import (
	"strconv"
	"strings"
)

const (
	topPortsDefault = "1000"
	topPortsQuick   = "100"
)

var timingTemplates = map[string]string{
	"paranoid":   "0",
	"sneaky":     "1",
	"polite":     "2",
	"normal":     "3",
	"aggressive": "4",
	"insane":     "5",
}

// start validates the binary and targets shared by every builder and
// returns the argv prefix plus the target tokens to append last.
func start(binary, targets string) ([]string, []string, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, nil, invalid("binary", "must not be empty")
	}
	tokens, err := ValidateTargets(targets)
	if err != nil {
		return nil, nil, err
	}
	return []string{binary}, tokens, nil
}

// portArgs maps a validated port expression to flags. topN is the
// --top-ports value used for the "common" preset.
func portArgs(ports, topN string) ([]string, error) {
	ports = strings.TrimSpace(ports)
	if err := ValidatePorts(ports); err != nil {
		return nil, err
	}
	switch ports {
	case PortsCommon:
		return []string{"--top-ports", topN}, nil
	case PortsAll:
		return []string{"-p-"}, nil
	default:
		return []string{"-p", ports}, nil
	}
}

func timingFlag(field, template string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(template))
	if n, ok := timingTemplates[t]; ok {
		return "-T" + n, nil
	}
	t = strings.TrimPrefix(t, "t")
	if len(t) == 1 && t[0] >= '0' && t[0] <= '5' {
		return "-T" + t, nil
	}
	return "", invalid(field, "must be one of paranoid, sneaky, polite, normal, aggressive, insane (or 0-5)")
}

// BuildBasicScan: quick favours throughput over coverage, comprehensive
// adds service and OS detection, stealth uses SYN probes at a slow pace.
func BuildBasicScan(binary string, p BasicScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	if err := checkEnum("scan_type", p.ScanType, ScanQuick, ScanComprehensive, ScanStealth); err != nil {
		return nil, err
	}
	topN := topPortsDefault
	if p.ScanType == ScanQuick {
		topN = topPortsQuick
	}
	ports, err := portArgs(p.Ports, topN)
	if err != nil {
		return nil, err
	}
	args = append(args, ports...)
	switch p.ScanType {
	case ScanQuick:
		args = append(args, "-T4", "--min-rate", "1000")
	case ScanComprehensive:
		args = append(args, "-sS", "-sV", "-O", "--script", "default")
	case ScanStealth:
		args = append(args, "-sS", "-T2", "--max-rate", "100")
	}
	return append(args, targets...), nil
}

func BuildServiceDetection(binary string, p ServiceDetectionParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	if err := checkRange("intensity", p.Intensity, 0, 9); err != nil {
		return nil, err
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, "-sV", "--version-intensity", strconv.Itoa(p.Intensity))
	args = append(args, ports...)
	return append(args, targets...), nil
}

// BuildOSDetection translates retries into nmap's --max-os-tries, which
// counts the first attempt too.
func BuildOSDetection(binary string, p OSDetectionParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	if err := checkRange("retries", p.Retries, 0, maxRetries); err != nil {
		return nil, err
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, "-O", "--max-os-tries", strconv.Itoa(p.Retries+1))
	args = append(args, ports...)
	return append(args, targets...), nil
}

func BuildScriptScan(binary string, p ScriptScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	if err := ValidateScripts("scripts", p.Scripts); err != nil {
		return nil, err
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, "--script", strings.TrimSpace(p.Scripts))
	args = append(args, ports...)
	return append(args, targets...), nil
}

func BuildStealthScan(binary string, p StealthScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	timing, err := timingFlag("timing_template", p.TimingTemplate)
	if err != nil {
		return nil, err
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, "-sS", timing)
	args = append(args, ports...)
	return append(args, targets...), nil
}

func BuildComprehensiveScan(binary string, p ComprehensiveScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, "-sS", "-sV", "-O")
	if p.IncludeScripts {
		args = append(args, "--script", "default")
	}
	args = append(args, ports...)
	return append(args, targets...), nil
}

// BuildPingScan only discovers hosts (-sn); the method selects the probes.
func BuildPingScan(binary string, p PingScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	args = append(args, "-sn")
	switch p.Method {
	case "icmp":
		args = append(args, "-PE")
	case "tcp":
		args = append(args, "-PS")
	case "both":
		args = append(args, "-PE", "-PS")
	default:
		return nil, checkEnum("method", p.Method, "icmp", "tcp", "both")
	}
	return append(args, targets...), nil
}

// BuildPortScan requires an explicit port list; presets are accepted too.
func BuildPortScan(binary string, p PortScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	var technique string
	switch p.Method {
	case "syn":
		technique = "-sS"
	case "connect":
		technique = "-sT"
	case "udp":
		technique = "-sU"
	default:
		return nil, checkEnum("method", p.Method, "syn", "connect", "udp")
	}
	if strings.TrimSpace(p.Ports) == "" {
		return nil, invalid("ports", "is required")
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, technique)
	args = append(args, ports...)
	return append(args, targets...), nil
}

// BuildVulnerabilityScan runs the "vuln" NSE category, optionally narrowed
// by intersecting it with a second category.
func BuildVulnerabilityScan(binary string, p VulnerabilityScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(p.VulnCategory)
	scripts := "vuln"
	if category != "all" {
		if !categoryChars.MatchString(category) {
			return nil, invalid("vuln_category", `must be "all" or a lowercase category name`)
		}
		scripts = "vuln and " + category
	}
	ports, err := portArgs(p.Ports, topPortsDefault)
	if err != nil {
		return nil, err
	}
	args = append(args, "--script", scripts)
	args = append(args, ports...)
	return append(args, targets...), nil
}

// BuildNetworkDiscovery sweeps for live hosts. With IncludePorts the sweep
// also scans the top 100 ports of every host found and identifies services.
func BuildNetworkDiscovery(binary string, p NetworkDiscoveryParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	var probes []string
	switch p.DiscoveryMethod {
	case "ping":
		probes = []string{"-PE"}
	case "arp":
		probes = []string{"-PR"}
	case "syn":
		probes = []string{"-PS"}
	case "all":
		probes = []string{"-PE", "-PS", "-PA"}
	default:
		return nil, checkEnum("discovery_method", p.DiscoveryMethod, "ping", "arp", "syn", "all")
	}
	if !p.IncludePorts {
		args = append(args, "-sn")
	}
	args = append(args, probes...)
	if p.IncludePorts {
		args = append(args, "-sV", "--top-ports", topPortsQuick)
	}
	return append(args, targets...), nil
}

// BuildCustomScan passes caller-chosen options through as discrete tokens.
func BuildCustomScan(binary string, p CustomScanParams) ([]string, error) {
	args, targets, err := start(binary, p.Targets)
	if err != nil {
		return nil, err
	}
	opts, err := TokenizeOptions("custom_options", p.CustomOptions)
	if err != nil {
		return nil, err
	}
	args = append(args, opts...)
	switch p.OutputFormat {
	case "normal":
	case "xml":
		args = append(args, "-oX", "-")
	case "grepable":
		args = append(args, "-oG", "-")
	default:
		return nil, checkEnum("output_format", p.OutputFormat, "normal", "xml", "grepable")
	}
	return append(args, targets...), nil
}
