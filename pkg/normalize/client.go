package normalize

import (
	"github.com/tidwall/gjson"

	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// Client status labels
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Client is a normalized OAuth client
type Client struct {
	ClientID           string   `json:"clientID"`
	Name               string   `json:"name"`
	Status             string   `json:"status"`
	GrantTypes         []string `json:"grantTypes"`
	RedirectURIs       []string `json:"redirectURIs"`
	AllowedScopes      []string `json:"allowedScopes"`
	AccessTokenManager string   `json:"accessTokenManager"`
	OIDCPolicy         string   `json:"oidcPolicy"`
	ApplicationID      *string  `json:"applicationID"`
}

var clientRules = []rule[Client]{
	text("clientID", func(c *Client) *string { return &c.ClientID }, "clientId"),
	text("name", func(c *Client) *string { return &c.Name }, "name"),
	{
		field: "status",
		apply: func(doc gjson.Result, _ Resolver, c *Client) {
			c.Status = StatusInactive
			if lookupBool(doc, "enabled") {
				c.Status = StatusActive
			}
		},
		cell: func(c *Client) interface{} { return c.Status },
	},
	list("grantTypes", func(c *Client) *[]string { return &c.GrantTypes }, "grantTypes"),
	list("redirectURIs", func(c *Client) *[]string { return &c.RedirectURIs }, "redirectUris"),
	list("allowedScopes", func(c *Client) *[]string { return &c.AllowedScopes }, "allowedScopes", "restrictedScopes"),
	ref("accessTokenManager", refcache.KindAccessTokenManager, func(c *Client) *string { return &c.AccessTokenManager },
		"accessTokenManagerRef.id", "defaultAccessTokenManagerRef.id"),
	ref("oidcPolicy", refcache.KindOIDCPolicy, func(c *Client) *string { return &c.OIDCPolicy },
		"openIdConnectPolicyRef.id", "oidcPolicy.policyGroup.id"),
	{
		field: "applicationID",
		apply: func(doc gjson.Result, _ Resolver, c *Client) {
			if id, ok := ExtractApplicationID(lookupString(doc, "description")); ok {
				c.ApplicationID = &id
			}
		},
		cell: func(c *Client) interface{} {
			if c.ApplicationID == nil {
				return nil
			}
			return *c.ApplicationID
		},
	},
}

// NormalizeClient maps a raw OAuth client record. It never fails.
func NormalizeClient(record upstream.Record, r Resolver) Client {
	return normalize(record, r, clientRules)
}

// ClientColumns returns the output field names in order
func ClientColumns() []string {
	return fields(clientRules)
}

// Columns returns the output field names in order
func (c Client) Columns() []string {
	return ClientColumns()
}

// Row returns the field values in column order with lists joined
func (c Client) Row() []interface{} {
	return cells(&c, clientRules)
}
