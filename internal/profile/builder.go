package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/google/uuid"
)

// Identifier is the PayloadIdentifier of every supervision profile this
// engine builds. Reconciliation scans device-reported profile lists for it.
const Identifier = "com.altrii.supervision"

// alwaysAllowedDomains can never appear on a deny list, no matter what the
// input policy says. The managing service must stay reachable or the device
// cannot be supervised at all, and crisis services are never filterable.
var alwaysAllowedDomains = []string{
	"altrii.com",
	"www.altrii.com",
	"app.altrii.com",
	"api.altrii.com",
	"mdm.altrii.com",
	"988lifeline.org",
	"suicidepreventionlifeline.org",
	"samaritans.org",
	"crisistextline.org",
	"thecalmzone.net",
}

// circumventionAppIDs are bundle identifiers of known VPN/proxy apps that
// defeat the content filter. Blocked from security level 2 up.
var circumventionAppIDs = []string{
	"ch.protonvpn.ios",
	"com.expressvpn.ExpressVPN",
	"com.nordvpn.NordVPN",
	"com.privateinternetaccess.ios",
	"com.surfshark.vpnclient.ios",
	"com.tunnelbear.TunnelBear",
}

// thirdPartyBrowserAppIDs extend the denylist at security level 3, where all
// browsing must go through the filtered system browser.
var thirdPartyBrowserAppIDs = []string{
	"com.aloha.browser",
	"com.brave.ios.browser",
	"com.duckduckgo.mobile.ios",
	"com.google.chrome.ios",
	"com.microsoft.msedge",
	"com.opera.OperaTouch",
	"org.mozilla.ios.Firefox",
}

// Document is the top-level mobileconfig structure.
type Document struct {
	PayloadContent           []any  `plist:"PayloadContent"`
	PayloadDescription       string `plist:"PayloadDescription"`
	PayloadDisplayName       string `plist:"PayloadDisplayName"`
	PayloadIdentifier        string `plist:"PayloadIdentifier"`
	PayloadOrganization      string `plist:"PayloadOrganization"`
	PayloadRemovalDisallowed bool   `plist:"PayloadRemovalDisallowed"`
	PayloadType              string `plist:"PayloadType"`
	PayloadUUID              string `plist:"PayloadUUID"`
	PayloadVersion           int    `plist:"PayloadVersion"`
}

// MDMPayload configures the management channel itself.
type MDMPayload struct {
	PayloadType         string `plist:"PayloadType"`
	PayloadVersion      int    `plist:"PayloadVersion"`
	PayloadIdentifier   string `plist:"PayloadIdentifier"`
	PayloadUUID         string `plist:"PayloadUUID"`
	PayloadDisplayName  string `plist:"PayloadDisplayName"`
	ServerURL           string `plist:"ServerURL"`
	CheckInURL          string `plist:"CheckInURL"`
	Topic               string `plist:"Topic"`
	AccessRights        int    `plist:"AccessRights"`
	CheckInInterval     int    `plist:"CheckInInterval"`
	CheckOutWhenRemoved bool   `plist:"CheckOutWhenRemoved"`
	SignMessage         bool   `plist:"SignMessage"`
}

// ContentFilterPayload carries the web filter deny/allow sets.
type ContentFilterPayload struct {
	PayloadType        string   `plist:"PayloadType"`
	PayloadVersion     int      `plist:"PayloadVersion"`
	PayloadIdentifier  string   `plist:"PayloadIdentifier"`
	PayloadUUID        string   `plist:"PayloadUUID"`
	PayloadDisplayName string   `plist:"PayloadDisplayName"`
	FilterType         string   `plist:"FilterType"`
	AutoFilterEnabled  bool     `plist:"AutoFilterEnabled"`
	FilterBrowsers     bool     `plist:"FilterBrowsers"`
	FilterSockets      bool     `plist:"FilterSockets"`
	DenyListURLs       []string `plist:"DenyListURLs"`
	PermittedURLs      []string `plist:"PermittedURLs"`
}

// RestrictionsPayload locks down device capabilities. Present only when the
// security level is 2 or higher.
type RestrictionsPayload struct {
	PayloadType                  string   `plist:"PayloadType"`
	PayloadVersion               int      `plist:"PayloadVersion"`
	PayloadIdentifier            string   `plist:"PayloadIdentifier"`
	PayloadUUID                  string   `plist:"PayloadUUID"`
	PayloadDisplayName           string   `plist:"PayloadDisplayName"`
	AllowVPNCreation             bool     `plist:"allowVPNCreation"`
	AllowAppInstallation         bool     `plist:"allowAppInstallation"`
	AllowUIAppInstallation       bool     `plist:"allowUIAppInstallation"`
	AllowAppRemoval              bool     `plist:"allowAppRemoval"`
	AllowEraseContentAndSettings bool     `plist:"allowEraseContentAndSettings"`
	AllowPasscodeModification    bool     `plist:"allowPasscodeModification"`
	BlacklistedAppBundleIDs      []string `plist:"blacklistedAppBundleIDs"`
}

// PasscodePayload enforces passcode policy. Present only when the security
// level is 2 or higher, strengthening at level 3.
type PasscodePayload struct {
	PayloadType          string `plist:"PayloadType"`
	PayloadVersion       int    `plist:"PayloadVersion"`
	PayloadIdentifier    string `plist:"PayloadIdentifier"`
	PayloadUUID          string `plist:"PayloadUUID"`
	PayloadDisplayName   string `plist:"PayloadDisplayName"`
	ForcePIN             bool   `plist:"forcePIN"`
	AllowSimple          bool   `plist:"allowSimple"`
	MinLength            int    `plist:"minLength"`
	RequireAlphanumeric  bool   `plist:"requireAlphanumeric"`
	MaxFailedAttempts    int    `plist:"maxFailedAttempts"`
	MaxGracePeriod       int    `plist:"maxGracePeriod"`
	MaxInactivityMinutes int    `plist:"maxInactivity"`
}

// accessRightsAll grants every MDM operation this engine issues.
const accessRightsAll = 8191

// Builder composes supervision profile documents.
type Builder struct {
	serverURL       string
	topic           string
	checkinInterval time.Duration
}

// NewBuilder creates a Builder bound to the engine's public endpoints.
func NewBuilder(serverURL, topic string, checkinInterval time.Duration) *Builder {
	if checkinInterval <= 0 {
		checkinInterval = 15 * time.Minute
	}
	return &Builder{
		serverURL:       strings.TrimRight(serverURL, "/"),
		topic:           topic,
		checkinInterval: checkinInterval,
	}
}

// Build composes the profile document for one device from the declarative
// policy and the requested security level. The returned metadata record has
// Installed unset; installation is only ever confirmed by reconciliation.
func (b *Builder) Build(udid string, policy model.Policy, securityLevel int) (*Document, *model.SupervisionProfile, error) {
	if securityLevel < 1 || securityLevel > 3 {
		return nil, nil, fmt.Errorf("security level must be 1-3, got %d", securityLevel)
	}

	profileUUID := uuid.NewString()
	doc := &Document{
		PayloadDescription:       "Altrii device supervision and content filtering",
		PayloadDisplayName:       "Altrii Supervision",
		PayloadIdentifier:        Identifier,
		PayloadOrganization:      "Altrii Recovery",
		PayloadRemovalDisallowed: securityLevel >= 2,
		PayloadType:              "Configuration",
		PayloadUUID:              profileUUID,
		PayloadVersion:           1,
	}

	doc.PayloadContent = append(doc.PayloadContent, b.mdmPayload())
	doc.PayloadContent = append(doc.PayloadContent, b.contentFilterPayload(policy))
	if securityLevel >= 2 {
		doc.PayloadContent = append(doc.PayloadContent, restrictionsPayload(securityLevel))
		doc.PayloadContent = append(doc.PayloadContent, passcodePayload(securityLevel))
	}

	meta := &model.SupervisionProfile{
		ProfileUUID:   profileUUID,
		UDID:          udid,
		SecurityLevel: securityLevel,
		CreatedAt:     time.Now().UTC(),
	}
	return doc, meta, nil
}

func (b *Builder) mdmPayload() MDMPayload {
	return MDMPayload{
		PayloadType:         "com.apple.mdm",
		PayloadVersion:      1,
		PayloadIdentifier:   Identifier + ".mdm",
		PayloadUUID:         uuid.NewString(),
		PayloadDisplayName:  "Device Management",
		ServerURL:           b.serverURL + "/mdm/command",
		CheckInURL:          b.serverURL + "/mdm/checkin",
		Topic:               b.topic,
		AccessRights:        accessRightsAll,
		CheckInInterval:     int(b.checkinInterval.Seconds()),
		CheckOutWhenRemoved: true,
		SignMessage:         false,
	}
}

func (b *Builder) contentFilterPayload(policy model.Policy) ContentFilterPayload {
	return ContentFilterPayload{
		PayloadType:        "com.apple.webcontent-filter",
		PayloadVersion:     1,
		PayloadIdentifier:  Identifier + ".webfilter",
		PayloadUUID:        uuid.NewString(),
		PayloadDisplayName: "Content Filter",
		FilterType:         "BuiltIn",
		AutoFilterEnabled:  false,
		FilterBrowsers:     true,
		FilterSockets:      true,
		DenyListURLs:       DenyList(policy),
		PermittedURLs:      permittedList(policy),
	}
}

// DenyList is the effective blocked-domain set: the union of blocked
// category domains and custom blocked domains, minus the fixed always-allow
// set and the operator's custom allows. The allow side always wins.
func DenyList(policy model.Policy) []string {
	allowed := make(map[string]struct{}, len(alwaysAllowedDomains)+len(policy.CustomAllowed))
	for _, d := range alwaysAllowedDomains {
		allowed[normalizeDomain(d)] = struct{}{}
	}
	for _, d := range policy.CustomAllowed {
		allowed[normalizeDomain(d)] = struct{}{}
	}

	denied := make(map[string]struct{})
	for _, category := range policy.Categories {
		if !category.Blocked {
			continue
		}
		for _, d := range category.Domains {
			denied[normalizeDomain(d)] = struct{}{}
		}
	}
	for _, d := range policy.CustomBlocked {
		denied[normalizeDomain(d)] = struct{}{}
	}

	deny := make([]string, 0, len(denied))
	for d := range denied {
		if d == "" {
			continue
		}
		if _, ok := allowed[d]; ok {
			continue
		}
		deny = append(deny, d)
	}
	sort.Strings(deny)
	return deny
}

func permittedList(policy model.Policy) []string {
	seen := make(map[string]struct{})
	permitted := make([]string, 0, len(alwaysAllowedDomains)+len(policy.CustomAllowed))
	for _, d := range alwaysAllowedDomains {
		d = normalizeDomain(d)
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			permitted = append(permitted, d)
		}
	}
	for _, d := range policy.CustomAllowed {
		d = normalizeDomain(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			permitted = append(permitted, d)
		}
	}
	sort.Strings(permitted)
	return permitted
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}

func restrictionsPayload(securityLevel int) RestrictionsPayload {
	p := RestrictionsPayload{
		PayloadType:                  "com.apple.applicationaccess",
		PayloadVersion:               1,
		PayloadIdentifier:            Identifier + ".restrictions",
		PayloadUUID:                  uuid.NewString(),
		PayloadDisplayName:           "Restrictions",
		AllowVPNCreation:             false,
		AllowAppInstallation:         true,
		AllowUIAppInstallation:       true,
		AllowAppRemoval:              true,
		AllowEraseContentAndSettings: true,
		AllowPasscodeModification:    true,
		BlacklistedAppBundleIDs:      append([]string(nil), circumventionAppIDs...),
	}
	if securityLevel >= 3 {
		p.AllowAppInstallation = false
		p.AllowUIAppInstallation = false
		p.AllowAppRemoval = false
		p.AllowEraseContentAndSettings = false
		p.AllowPasscodeModification = false
		p.BlacklistedAppBundleIDs = append(p.BlacklistedAppBundleIDs, thirdPartyBrowserAppIDs...)
		sort.Strings(p.BlacklistedAppBundleIDs)
	}
	return p
}

func passcodePayload(securityLevel int) PasscodePayload {
	p := PasscodePayload{
		PayloadType:          "com.apple.mobiledevice.passwordpolicy",
		PayloadVersion:       1,
		PayloadIdentifier:    Identifier + ".passcode",
		PayloadUUID:          uuid.NewString(),
		PayloadDisplayName:   "Passcode Policy",
		ForcePIN:             true,
		AllowSimple:          true,
		MinLength:            6,
		RequireAlphanumeric:  false,
		MaxFailedAttempts:    10,
		MaxGracePeriod:       5,
		MaxInactivityMinutes: 15,
	}
	if securityLevel >= 3 {
		p.AllowSimple = false
		p.MinLength = 8
		p.RequireAlphanumeric = true
		p.MaxFailedAttempts = 6
		p.MaxGracePeriod = 0
		p.MaxInactivityMinutes = 5
	}
	return p
}

// CircumventionDenylist returns the bundle-identifier denylist enforced at
// the given security level. Level 1 enforces none.
func CircumventionDenylist(securityLevel int) []string {
	switch {
	case securityLevel >= 3:
		ids := append([]string(nil), circumventionAppIDs...)
		ids = append(ids, thirdPartyBrowserAppIDs...)
		sort.Strings(ids)
		return ids
	case securityLevel == 2:
		return append([]string(nil), circumventionAppIDs...)
	}
	return nil
}

// AlwaysAllowedDomains exposes a copy of the fixed allow set.
func AlwaysAllowedDomains() []string {
	return append([]string(nil), alwaysAllowedDomains...)
}
