package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/saddatahmad19/deepdomain/internal/dispatch"
)

// freeEngines is the theHarvester source list requiring no API keys.
var freeEngines = []string{
	"baidu", "certspotter", "chaos", "commoncrawl", "crtsh", "duckduckgo",
	"gitlab", "hackertarget", "hudsonrock", "linkedin", "linkedin_links",
	"netcraft", "omnisint", "otx", "qwant", "rapiddns", "robtex",
	"subdomaincenter", "subdomainfinderc99", "sublist3r", "threatcrowd",
	"threatminer", "waybackarchive", "yahoo",
}

// highValuePattern flags subdomains suggesting sensitive surfaces.
const highValuePattern = "admin|api|vpn|dev|test|staging|internal|portal|login|db|mail|backup|advisor"

func (o *Orchestrator) runRecon(ctx context.Context) error {
	o.bridge.Phase("Reconnaissance Phase", 30)
	o.bridge.Status("Starting reconnaissance phase...", dispatch.SeverityInfo)

	o.bridge.Status("Running whoami execution set...", dispatch.SeverityInfo)
	if err := o.runWhoami(ctx); err != nil {
		return err
	}
	o.bridge.Status("WhoAmI investigation complete", dispatch.SeveritySuccess)

	o.bridge.Status("Discovering subdomains...", dispatch.SeverityInfo)
	if err := o.runSubdomains(ctx); err != nil {
		return err
	}
	o.bridge.Status("Subdomain discovery complete", dispatch.SeveritySuccess)

	o.bridge.Status("Harvesting information...", dispatch.SeverityInfo)
	if err := o.runHarvest(ctx); err != nil {
		return err
	}
	o.bridge.Status("Information harvesting complete", dispatch.SeveritySuccess)

	o.bridge.Status("Querying Shodan...", dispatch.SeverityInfo)
	if err := o.runShodan(ctx); err != nil {
		return err
	}
	o.bridge.Status("Shodan reconnaissance complete", dispatch.SeveritySuccess)

	o.bridge.Status("Reconnaissance phase complete", dispatch.SeveritySuccess)
	return nil
}

// runWhoami resolves the domain and pulls whois for both the name and its
// first address.
func (o *Orchestrator) runWhoami(ctx context.Context) error {
	rel, err := o.ensureArtifact("recon", "whoami.md", "WhoAmI")
	if err != nil {
		return err
	}

	res := o.exec(ctx, "whoami", fmt.Sprintf("host %s", o.domain), "", rel)
	o.appendResult(rel, res)

	if ip := extractIP(res.Stdout); ip != "" {
		ipRes := o.exec(ctx, "whoami", fmt.Sprintf("whois %s", ip), "", rel)
		o.appendResult(rel, ipRes)
	}

	domRes := o.exec(ctx, "whoami", fmt.Sprintf("whois %s", o.domain), "", rel)
	o.appendResult(rel, domRes)
	return nil
}

// runSubdomains discovers subdomains from subfinder and crt.sh, deduplicates
// them, highlights high-value names, and probes for live HTTP services.
func (o *Orchestrator) runSubdomains(ctx context.Context) error {
	const dir = "recon/subdomains"
	rel, err := o.ensureArtifact(dir, "subdomains.md", "Subdomains")
	if err != nil {
		return err
	}

	subfinderCmd := fmt.Sprintf("subfinder -d %s -oD ./ -o subfinder_results.md", o.domain)
	o.exec(ctx, "subdomains", subfinderCmd, dir, rel)

	crtCmd := fmt.Sprintf(
		`curl "https://crt.sh/?q=%%25.%s&output=json" | jq -r '.[].name_value' | sort -u > crtsh_subdomains.md`,
		o.domain)
	o.exec(ctx, "subdomains", crtCmd, dir, rel)

	o.exec(ctx, "subdomains",
		"cat subfinder_results.md crtsh_subdomains.md > combined_subdomains.md", dir, rel)

	sortRes := o.exec(ctx, "subdomains", "sort -u combined_subdomains.md", dir, rel)
	all := sortRes.Stdout
	if all == "" {
		all = sortRes.Stderr
	}
	all = capLines(all, o.profile.MaxSubdomains)
	if err := o.ws.WriteFile(dir+"/all_subdomains.txt", all); err != nil {
		o.logger.Warn("failed to write subdomain list", "error", err)
	}
	o.appendOutput(rel, all)

	grepCmd := fmt.Sprintf(`grep -iE "%s" all_subdomains.txt`, highValuePattern)
	grepRes := o.exec(ctx, "subdomains", grepCmd, dir, rel)
	o.appendResult(rel, grepRes)

	httpxCmd := fmt.Sprintf(
		"httpx -l all_subdomains.txt -title -status-code -tech-detect -follow-redirects -mc 200,301,302%s -o live_subdomains.txt",
		httpxThreads(o.profile.HTTPXThreads))
	o.exec(ctx, "subdomains", httpxCmd, dir, rel)
	o.appendFileOutput(rel, dir+"/live_subdomains.txt")
	return nil
}

// runHarvest gathers emails, hosts, and names with theHarvester.
func (o *Orchestrator) runHarvest(ctx context.Context) error {
	const dir = "recon/harvest"
	rel, err := o.ensureArtifact(dir, "harvest.md", "Harvest")
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("theHarvester -d %s -b %s", o.domain, strings.Join(freeEngines, ","))
	res := o.exec(ctx, "harvest", cmd, dir, rel)
	o.appendResult(rel, res)
	return nil
}

// runShodan queries shodan's index for hosts on the domain.
func (o *Orchestrator) runShodan(ctx context.Context) error {
	const dir = "recon/shodan"
	rel, err := o.ensureArtifact(dir, "shodan.md", "Shodan")
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("shodan search hostname:%s --fields ip_str,port,org,data --limit 100", o.domain)
	res := o.exec(ctx, "shodan", cmd, dir, rel)
	o.appendResult(rel, res)
	return nil
}

func httpxThreads(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" -threads %d", n)
}

// capLines truncates text to at most n lines. n <= 0 means unlimited.
func capLines(text string, n int) string {
	if n <= 0 {
		return text
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[:n], "\n") + "\n"
}
