package normalize

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// Connection is a normalized SAML SP connection
type Connection struct {
	AppName          string   `json:"appName"`
	AppID            string   `json:"appID"`
	EntityID         string   `json:"entityID"`
	Active           bool     `json:"active"`
	IdpURL           string   `json:"idpURL"`
	BaseURL          string   `json:"baseURL"`
	Protocol         string   `json:"protocol"`
	EnabledProfiles  []string `json:"enabledProfiles"`
	IncomingBindings []string `json:"incomingBindings"`
	DataStore        string   `json:"dataStore"`
	IssuanceCriteria string   `json:"issuanceCriteria"`
	CertificateName  string   `json:"certificateName"`
}

// IssuanceSeparator joins multiple issuance expressions
const IssuanceSeparator = "; "

var connectionRules = []rule[Connection]{
	text("appName", func(c *Connection) *string { return &c.AppName }, "name"),
	text("appID", func(c *Connection) *string { return &c.AppID }, "contactInfo.phone", "phone"),
	text("entityID", func(c *Connection) *string { return &c.EntityID }, "entityId"),
	flag("active", func(c *Connection) *bool { return &c.Active }, "active"),
	text("idpURL", func(c *Connection) *string { return &c.IdpURL },
		"ssoService.ssoApplicationEndpoint", "spBrowserSso.ssoApplicationEndpoint"),
	text("baseURL", func(c *Connection) *string { return &c.BaseURL }, "baseUrl"),
	text("protocol", func(c *Connection) *string { return &c.Protocol }, "protocol", "spBrowserSso.protocol"),
	list("enabledProfiles", func(c *Connection) *[]string { return &c.EnabledProfiles },
		"enabledProfiles", "spBrowserSso.enabledProfiles"),
	list("incomingBindings", func(c *Connection) *[]string { return &c.IncomingBindings },
		"incomingBindings", "spBrowserSso.incomingBindings"),
	ref("dataStore", refcache.KindDatastore, func(c *Connection) *string { return &c.DataStore },
		"attributeMapping.dataStoreRef.id"),
	{
		field: "issuanceCriteria",
		apply: func(doc gjson.Result, _ Resolver, c *Connection) { c.IssuanceCriteria = issuanceCriteria(doc) },
		cell:  func(c *Connection) interface{} { return c.IssuanceCriteria },
	},
	ref("certificateName", refcache.KindCertificate, func(c *Connection) *string { return &c.CertificateName },
		"credentials.signingSettings.signingKeyPairRef.id"),
}

// issuanceCriteria flattens the criteria to its expressions. A plain string
// value is taken as is.
func issuanceCriteria(doc gjson.Result) string {
	if s := lookupString(doc, "issuanceCriteria"); s != "" {
		return s
	}
	expressions := lookupStrings(doc, "issuanceCriteria.expressionCriteria.#.expression")
	kept := expressions[:0]
	for _, e := range expressions {
		if e = strings.TrimSpace(e); e != "" {
			kept = append(kept, e)
		}
	}
	return strings.Join(kept, IssuanceSeparator)
}

// NormalizeConnection maps a raw SP connection record. It never fails.
func NormalizeConnection(record upstream.Record, r Resolver) Connection {
	return normalize(record, r, connectionRules)
}

// ConnectionColumns returns the output field names in order
func ConnectionColumns() []string {
	return fields(connectionRules)
}

// Columns returns the output field names in order
func (c Connection) Columns() []string {
	return ConnectionColumns()
}

// Row returns the field values in column order with lists joined
func (c Connection) Row() []interface{} {
	return cells(&c, connectionRules)
}
