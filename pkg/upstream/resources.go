package upstream

// AdminAPIPrefix is prepended to every resource path
const AdminAPIPrefix = "/pf-admin-api/v1"

// Admin API collections read by this service
const (
	ResourceSPConnections       = "idp/sp-connections"
	ResourceOAuthClients        = "oauth/clients"
	ResourceSigningKeyPairs     = "keyPairs/signing"
	ResourceDataStores          = "dataStores"
	ResourceAccessTokenManagers = "oauth/accessTokenManagers"
	ResourceOIDCPolicies        = "oauth/openIdConnect/policies"
)

// XSRFHeader is required by the admin API on every request
const (
	XSRFHeader      = "X-XSRF-Header"
	XSRFHeaderValue = "PingFederate"
)
