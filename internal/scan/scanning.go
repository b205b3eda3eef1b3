package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/saddatahmad19/deepdomain/internal/dispatch"
)

func (o *Orchestrator) runScanning(ctx context.Context) error {
	o.bridge.Phase("Scanning Phase", 60)
	o.bridge.Status("Starting scanning phase...", dispatch.SeverityInfo)

	o.bridge.Status("Preparing scanning workspace...", dispatch.SeverityInfo)
	if _, err := o.ws.EnsureDir("scanning"); err != nil {
		return err
	}
	o.bridge.Status("Scanning workspace initialized", dispatch.SeveritySuccess)

	o.bridge.Status("Resolving hosts and live endpoints...", dispatch.SeverityInfo)
	if err := o.runResolve(ctx); err != nil {
		return err
	}
	o.bridge.Status("Host resolution complete", dispatch.SeveritySuccess)

	o.bridge.Status("Performing network discovery...", dispatch.SeverityInfo)
	if err := o.runNetworkDiscover(ctx); err != nil {
		return err
	}
	o.bridge.Status("Network discovery complete", dispatch.SeveritySuccess)

	o.bridge.Status("Scanning phase complete", dispatch.SeveritySuccess)
	return nil
}

// runResolve resolves the discovered subdomains to addresses with dnsx and
// re-probes live HTTP services against the full list.
func (o *Orchestrator) runResolve(ctx context.Context) error {
	const dir = "scanning/resolve"
	rel, err := o.ensureArtifact(dir, "resolved.md", "Resolved Hosts")
	if err != nil {
		return err
	}

	allSubdomains, err := o.ws.Abs("recon/subdomains/all_subdomains.txt")
	if err != nil {
		return err
	}
	resolveDir, err := o.ws.Abs(dir)
	if err != nil {
		return err
	}

	dnsxCmd := fmt.Sprintf("cat %s | dnsx -silent -a -aaaa -resp%s -o %s/resolved_hosts.txt",
		allSubdomains, dnsxThreads(o.profile.DNSXConcurrency), resolveDir)
	o.exec(ctx, "resolve", dnsxCmd, dir, rel)
	o.appendFileOutput(rel, dir+"/resolved_hosts.txt")

	httpxCmd := fmt.Sprintf(
		"httpx -l %s -title -status-code -tech-detect -follow-redirects -mc 200,301,302%s -o %s/live_subdomains.txt",
		allSubdomains, httpxThreads(o.profile.HTTPXThreads), resolveDir)
	o.exec(ctx, "resolve", httpxCmd, dir, rel)
	o.appendFileOutput(rel, dir+"/live_subdomains.txt")
	return nil
}

// runNetworkDiscover sweeps resolved hosts quickly with nmap and masscan,
// then runs a detailed nmap service scan against the open ports masscan
// found.
func (o *Orchestrator) runNetworkDiscover(ctx context.Context) error {
	const quickDir = "scanning/network_discover/quick"
	const detailDir = "scanning/network_discover/detailed"

	quickRel, err := o.ensureArtifact(quickDir, "quick_discovery.md", "Quick Discovery")
	if err != nil {
		return err
	}
	detailRel, err := o.ensureArtifact(detailDir, "detailed_discovery.md", "Detailed Discovery")
	if err != nil {
		return err
	}

	hostsFile, err := o.ws.Abs("scanning/resolve/resolved_hosts.txt")
	if err != nil {
		return err
	}
	quickAbs, err := o.ws.Abs(quickDir)
	if err != nil {
		return err
	}
	detailAbs, err := o.ws.Abs(detailDir)
	if err != nil {
		return err
	}

	timing := o.profile.NmapTiming
	if timing == "" {
		timing = "-T4"
	}

	pingCmd := fmt.Sprintf("nmap -sS -Pn %s -F -iL %s -oN %s/nmap_ping.txt", timing, hostsFile, quickAbs)
	o.exec(ctx, "network_discover", pingCmd, quickDir, quickRel)
	o.appendFileOutput(quickRel, quickDir+"/nmap_ping.txt")

	ports := o.profile.MasscanPorts
	if ports == "" {
		ports = "-p1-65535"
	}
	rate := o.profile.MasscanRate
	if rate <= 0 {
		rate = 1000
	}
	masscanCmd := fmt.Sprintf("masscan %s --rate=%d -iL %s --banners -oG %s/masscan_results.grep",
		ports, rate, hostsFile, quickAbs)
	o.exec(ctx, "network_discover", masscanCmd, quickDir, quickRel)
	o.appendFileOutput(quickRel, quickDir+"/masscan_results.grep")

	openPorts := o.openPortsFromMasscan(ctx, quickDir)
	if openPorts == "" {
		o.appendOutput(detailRel, "No open ports found from masscan results. Skipping detailed nmap scan.")
		return nil
	}

	detailHosts := hostsFile
	if o.profile.MaxHostsDetailed > 0 {
		capped := fmt.Sprintf("head -n %d %s > %s/detailed_hosts.txt",
			o.profile.MaxHostsDetailed, hostsFile, detailAbs)
		o.exec(ctx, "network_discover", capped, detailDir, detailRel)
		detailHosts = detailAbs + "/detailed_hosts.txt"
	}

	detCmd := fmt.Sprintf("nmap -sV -O -sC %s -p %s -iL %s -oA %s/nmap_detailed",
		timing, openPorts, detailHosts, detailAbs)
	o.exec(ctx, "network_discover", detCmd, detailDir, detailRel)
	o.appendFileOutput(detailRel, detailDir+"/nmap_detailed.nmap")
	return nil
}

// openPortsFromMasscan parses the grepable masscan output into a
// comma-separated port list for nmap, "" when none were found.
func (o *Orchestrator) openPortsFromMasscan(ctx context.Context, quickDir string) string {
	if !o.ws.Exists(quickDir + "/masscan_results.grep") {
		return ""
	}
	res := o.exec(ctx, "network_discover",
		"grep open masscan_results.grep | cut -d' ' -f4 | cut -d/ -f1 | sort -u", quickDir)
	ports := strings.TrimSpace(res.Stdout)
	if ports == "" {
		return ""
	}
	return strings.ReplaceAll(ports, "\n", ",")
}

func dnsxThreads(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" -t %d", n)
}
