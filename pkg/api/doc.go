// Package api serves the read-only catalog over HTTP.
//
// Routes (all GET, all selecting the environment with ?env=<name>):
//
//	/connections            normalized SAML SP connections
//	/api/saml-connections   alias of /connections
//	/clients                normalized OAuth clients
//	/api/oauth-connections  alias of /clients
//	/connections/export     xlsx download of the connections
//	/clients/export         xlsx download of the clients
//	/environments           configured environment names
//	/cache/status           reference table population per environment
//
// List and export routes accept repeated filter=column:value parameters,
// matched as case-insensitive substrings.
//
// A missing or unknown environment is a 400 and a failed primary upstream
// fetch is a 502; both carry a {"error": "..."} body. Upstream detail is
// only logged.
package api
