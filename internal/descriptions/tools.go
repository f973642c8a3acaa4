// Package descriptions holds the long-form tool descriptions shown to MCP
// clients.
package descriptions

const (
	AuditReportDescription = `Run a deterministic compliance audit over a residential appraisal report PDF.

**When to use:** Reviewing a 1004, 1073, 1025 or 2055 appraisal for GSE, USPAP, VA, FHA, fair-housing and state disclosure issues.

**Output:** Plain text in five fixed sections:
[SECTION 1] REPORT METADATA SNAPSHOT
[SECTION 2] SUMMARY OF COMPLIANCE FLAGS
[SECTION 3] DETAILED FLAGS AND REFERENCES
[SECTION 4] TOP FLAGS (CONDENSED)
[SECTION 5] ADDITIONAL NOTES

**Examples:**
• "Audit /reports/123-main-st.pdf"
• "Audit va-appraisal.pdf in legacy style"

**Notes:** Identical input and policy always produce identical output. Failures (unsupported file, oversized, active content, OCR outage) are reported in the same five sections with a single CRITICAL flag.`

	AuditVersionsDescription = `Report the output rules and execution schematic versions the audit enforces.

**When to use:** Confirming which policy revision produced a report, or checking a deployment before running audits.`

	AuditReadyDescription = `Check whether audits can run: policy documents load with the required versions and a layout-analysis provider is configured.`
)
