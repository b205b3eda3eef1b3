package scan

import (
	"context"
	"fmt"

	"github.com/saddatahmad19/deepdomain/internal/dispatch"
)

func (o *Orchestrator) runEnumeration(ctx context.Context) error {
	o.bridge.Phase("Enumeration Phase", 80)
	o.bridge.Status("Starting enumeration phase...", dispatch.SeverityInfo)

	o.bridge.Status("Preparing enumeration workspace...", dispatch.SeverityInfo)
	if _, err := o.ws.EnsureDir("enumeration"); err != nil {
		return err
	}
	o.bridge.Status("Enumeration workspace initialized", dispatch.SeveritySuccess)

	o.bridge.Status("Running vulnerability enumeration...", dispatch.SeverityInfo)
	if err := o.runVulnerable(ctx); err != nil {
		return err
	}
	o.bridge.Status("Vulnerability enumeration complete", dispatch.SeveritySuccess)

	o.bridge.Status("Enumeration phase complete", dispatch.SeveritySuccess)
	return nil
}

// runVulnerable probes the live services found during recon with nikto,
// gobuster, and optionally nuclei.
func (o *Orchestrator) runVulnerable(ctx context.Context) error {
	const dir = "enumeration/vulnerable"
	rel, err := o.ensureArtifact(dir, "vulnerable.md", "Vulnerable")
	if err != nil {
		return err
	}

	liveSubdomains, err := o.ws.Abs("recon/subdomains/live_subdomains.txt")
	if err != nil {
		return err
	}
	vulnAbs, err := o.ws.Abs(dir)
	if err != nil {
		return err
	}

	niktoCmd := fmt.Sprintf("nikto -h $(cat %s | cut -d' ' -f1) -Tuning 1234567890%s -o %s/nikto_results.txt",
		liveSubdomains, niktoMaxTime(o.profile.NiktoMaxTime), vulnAbs)
	o.exec(ctx, "vulnerable", niktoCmd, dir, rel)
	o.appendFileOutput(rel, dir+"/nikto_results.txt")

	threads := o.profile.GobusterThreads
	if threads <= 0 {
		threads = 50
	}
	gobusterCmd := fmt.Sprintf(
		"gobuster dir -u $(head -n1 %s | cut -d' ' -f1) -w /usr/share/wordlists/dirb/common.txt -t %d -x php,html,txt -o %s/gobuster_results.txt",
		liveSubdomains, threads, vulnAbs)
	o.exec(ctx, "vulnerable", gobusterCmd, dir, rel)
	o.appendFileOutput(rel, dir+"/gobuster_results.txt")

	if !o.profile.RunNuclei {
		o.appendOutput(rel, "Nuclei disabled for this scan mode.")
		return nil
	}

	nucleiCmd := fmt.Sprintf(
		"nuclei -l %s -t /usr/share/nuclei-templates/ -severity low,medium,high,critical -o %s/nuclei_vulns.txt",
		liveSubdomains, vulnAbs)
	o.exec(ctx, "vulnerable", nucleiCmd, dir, rel)
	o.appendFileOutput(rel, dir+"/nuclei_vulns.txt")
	return nil
}

func niktoMaxTime(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf(" -maxtime %ds", seconds)
}
