package trustnet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/fundscrape/models"
	"github.com/use-agent/fundscrape/scraper"
)

// Selectors holds every DOM hook the scrapers depend on. If the site's
// markup changes, override the affected entries with a YAML file instead
// of rebuilding.
type Selectors struct {
	HomeURL        string `yaml:"home_url"`
	CookieAllowAll string `yaml:"cookie_allow_all"`
	InvestorLabel  string `yaml:"investor_label"`
	AgreeButton    string `yaml:"agree_button"`
	TermsModal     string `yaml:"terms_modal"`
	ModalShowClass string `yaml:"modal_show_class"`

	SectorsURL         string `yaml:"sectors_url"`
	SectorsTable       string `yaml:"sectors_table"`
	SectorsHeaderToken string `yaml:"sectors_header_token"`
	PaginationButtons  string `yaml:"pagination_buttons"`

	FundName       string `yaml:"fund_name"`
	RiskScore      string `yaml:"risk_score"`
	Table          string `yaml:"table"`
	UnitInfoTable  string `yaml:"unit_info_table"`
	SectorLinkText string `yaml:"sector_link_text"`
}

// DefaultSelectors returns the selectors for the live site.
func DefaultSelectors() Selectors {
	return Selectors{
		HomeURL:        "https://www.trustnet.com/",
		CookieAllowAll: "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
		InvestorLabel:  "label[for='tc-check-Investor']",
		AgreeButton:    "#tc-modal-agree",
		TermsModal:     "#termsAndConditions",
		ModalShowClass: "show",

		SectorsURL:         "https://www.trustnet.com/fund/sectors/performance?universe=O",
		SectorsTable:       ".table-responsive",
		SectorsHeaderToken: "Name",
		PaginationButtons:  ".set-page",

		FundName:       ".key-wrapper__fund-name",
		RiskScore:      ".fe-fundinfo__riskscore",
		Table:          ".fe-table",
		UnitInfoTable:  ".fe-table.fe_table__head-left.table-all-left",
		SectorLinkText: "(View sector)",
	}
}

// LoadSelectors returns the defaults with any keys from the YAML file at
// path laid over them. An empty path yields the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("read selectors file %s", path), err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("parse selectors file %s", path), err)
	}
	return sel, nil
}

// Consent converts the banner selectors into the session's consent plan.
func (s Selectors) Consent() scraper.Consent {
	return scraper.Consent{
		HomeURL: s.HomeURL,
		Clicks: []scraper.Click{
			{Name: "cookie_allow_all", Selector: s.CookieAllowAll},
			{Name: "investor_private", Selector: s.InvestorLabel},
			{Name: "agree_terms", Selector: s.AgreeButton},
		},
		Modal: scraper.Modal{
			Selector:  s.TermsModal,
			ShowClass: s.ModalShowClass,
			Clicks: []scraper.Click{
				{Name: "investor_private", Selector: s.InvestorLabel, After: 500 * time.Millisecond},
				{Name: "agree_terms", Selector: s.AgreeButton, After: time.Second},
			},
		},
	}
}
