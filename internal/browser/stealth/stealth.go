// internal/browser/stealth/stealth.go
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

//go:embed evasions.js
var EvasionsJS string

// personaGlobal is read by evasions.js before it patches navigator.
const personaGlobal = "__chatpilotPersona"

// AcceptLanguage renders the persona languages as an Accept-Language header
// value with descending q-weights, e.g. "en-US,en;q=0.9".
func AcceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(languages))
	for i, lang := range languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// PersonaScript returns the snippet that publishes the persona for evasions.js.
func PersonaScript(p config.PersonaConfig) (string, error) {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]interface{}{
		"platform":  p.Platform,
		"languages": p.Languages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("Object.defineProperty(window, %q, { value: %s, configurable: true });", personaGlobal, payload), nil
}

// Apply constructs the CDP actions that make the headless browser present
// the configured persona: user agent, evasions script, timezone, locale and
// a matching Accept-Language header. Empty persona fields are skipped.
func Apply(p config.PersonaConfig, logger *zap.Logger) (chromedp.Tasks, error) {
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
	)

	personaJS, err := PersonaScript(p)
	if err != nil {
		return nil, err
	}
	script := personaJS + "\n" + EvasionsJS

	var tasks chromedp.Tasks
	if p.UserAgent != "" {
		override := emulation.SetUserAgentOverride(p.UserAgent)
		if p.Platform != "" {
			override = override.WithPlatform(p.Platform)
		}
		if lang := AcceptLanguage(p.Languages); lang != "" {
			override = override.WithAcceptLanguage(lang)
		}
		tasks = append(tasks, override)
	}

	tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("failed to inject evasions script: %w", err)
		}
		return nil
	}))

	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(p.Locale))
	}
	if lang := AcceptLanguage(p.Languages); lang != "" {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": lang}))
	}

	logger.Debug("Stealth persona prepared.", zap.Int("actions", len(tasks)))
	return tasks, nil
}
