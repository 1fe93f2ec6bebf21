// File: internal/locator/locator.go
// Package locator names every element of the target chat page that the
// session controller touches. Keeping the selectors here means a markup change
// on the site is a config edit, not a code change in the send workflow.
package locator

import (
	"fmt"
	"strings"
)

// Strategy is the query language of a Locator.
type Strategy string

const (
	// ByCSS resolves the query with document.querySelector semantics.
	ByCSS Strategy = "css"
	// ByXPath resolves the query as an XPath expression (first match in document order).
	ByXPath Strategy = "xpath"
)

// Locator identifies a single element on the page.
type Locator struct {
	Query string   `mapstructure:"query" yaml:"query"`
	By    Strategy `mapstructure:"by" yaml:"by"`
}

// CSS builds a CSS locator.
func CSS(q string) Locator { return Locator{Query: q, By: ByCSS} }

// XPath builds an XPath locator.
func XPath(q string) Locator { return Locator{Query: q, By: ByXPath} }

// IsXPath reports whether the locator uses XPath. An empty strategy is
// inferred from the query shape.
func (l Locator) IsXPath() bool {
	if l.By == "" {
		return strings.HasPrefix(l.Query, "/") || strings.HasPrefix(l.Query, "(")
	}
	return l.By == ByXPath
}

// String renders the locator for log fields.
func (l Locator) String() string {
	if l.IsXPath() {
		return "xpath=" + l.Query
	}
	return "css=" + l.Query
}

// Validate checks that the locator is usable.
func (l Locator) Validate() error {
	if strings.TrimSpace(l.Query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	switch l.By {
	case "", ByCSS, ByXPath:
		return nil
	default:
		return fmt.Errorf("unknown strategy %q (want css or xpath)", l.By)
	}
}

// Set holds the locators for every element the controller interacts with.
type Set struct {
	// Sign-in form.
	Email    Locator `mapstructure:"email" yaml:"email"`
	Password Locator `mapstructure:"password" yaml:"password"`
	Terms    Locator `mapstructure:"terms" yaml:"terms"`
	Submit   Locator `mapstructure:"submit" yaml:"submit"`

	// Account menu.
	AccountMenu Locator `mapstructure:"account_menu" yaml:"account_menu"`
	LogoutItem  Locator `mapstructure:"logout_item" yaml:"logout_item"`

	// Conversation controls.
	NewChat   Locator `mapstructure:"new_chat" yaml:"new_chat"`
	DeepThink Locator `mapstructure:"deep_think" yaml:"deep_think"`

	// Compose and send.
	Compose          Locator `mapstructure:"compose" yaml:"compose"`
	LoadingIndicator Locator `mapstructure:"loading_indicator" yaml:"loading_indicator"`
	SendButton       Locator `mapstructure:"send_button" yaml:"send_button"`
	SendIdle         Locator `mapstructure:"send_idle" yaml:"send_idle"`
	LastResponse     Locator `mapstructure:"last_response" yaml:"last_response"`
}

// Default returns the locators matching the current markup of the target site.
func Default() Set {
	return Set{
		Email:    XPath("/html/body/div[1]/div/div[2]/div/div/div[3]/div[1]/div/input"),
		Password: XPath("/html/body/div[1]/div/div[2]/div/div/div[4]/div[1]/div/input"),
		Terms:    XPath("/html/body/div[1]/div/div[2]/div/div/div[5]/div[1]/div/div[1]/div"),
		Submit:   XPath("/html/body/div[1]/div/div[2]/div/div/div[6]"),

		AccountMenu: CSS("div.c6ab9234"),
		LogoutItem:  XPath("//div[@class='ds-dropdown-menu-option__label' and text()='Log out']"),

		NewChat:   CSS("#root > div > div.c3ecdb44 > div.f2eea526 > div > div.b83ee326 > div > div > div.e886deb9 > div"),
		DeepThink: CSS(".ds-button.ds-button--primary.ds-button--filled.ds-button--rect.ds-button--m.d9f56c96"),

		Compose:          CSS("#chat-input"),
		LoadingIndicator: CSS(".loading-indicator"),
		SendButton:       CSS(".f6d670"),
		SendIdle:         XPath("//div[@role='button' and @aria-disabled='true' and not(.//*[contains(@class, 'ds-loading')])]"),
		LastResponse:     XPath("(//div[contains(@class, 'ds-markdown--block')])[last()]"),
	}
}

// Validate checks every locator in the set.
func (s Set) Validate() error {
	for name, l := range s.Named() {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("locators.%s: %w", name, err)
		}
	}
	return nil
}

// Named maps the config key of each locator to its value.
func (s Set) Named() map[string]Locator {
	return map[string]Locator{
		"email":             s.Email,
		"password":          s.Password,
		"terms":             s.Terms,
		"submit":            s.Submit,
		"account_menu":      s.AccountMenu,
		"logout_item":       s.LogoutItem,
		"new_chat":          s.NewChat,
		"deep_think":        s.DeepThink,
		"compose":           s.Compose,
		"loading_indicator": s.LoadingIndicator,
		"send_button":       s.SendButton,
		"send_idle":         s.SendIdle,
		"last_response":     s.LastResponse,
	}
}
