package refcache

import "github.com/platinummonkey/pfcatalog/pkg/upstream"

// Kind identifies a category of referenced admin object
type Kind string

const (
	KindCertificate        Kind = "certificate"
	KindDatastore          Kind = "datastore"
	KindAccessTokenManager Kind = "access_token_manager"
	KindOIDCPolicy         Kind = "oidc_policy"
)

var kindResources = map[Kind]string{
	KindCertificate:        upstream.ResourceSigningKeyPairs,
	KindDatastore:          upstream.ResourceDataStores,
	KindAccessTokenManager: upstream.ResourceAccessTokenManagers,
	KindOIDCPolicy:         upstream.ResourceOIDCPolicies,
}

// AllKinds returns every kind in a stable order
func AllKinds() []Kind {
	return []Kind{KindCertificate, KindDatastore, KindAccessTokenManager, KindOIDCPolicy}
}

// ResourcePath returns the admin API collection holding objects of this kind
func (k Kind) ResourcePath() string {
	return kindResources[k]
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	_, ok := kindResources[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}
