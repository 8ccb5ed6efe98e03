// Package redis implements dao.Service on redis hashes (one hash per
// entity kind, one field per entity) with go-redis/v9.
package redis

import (
	"fmt"
	"strings"

	rd "github.com/go-redis/redis/v9"
)

// Config defines redis connection settings.
type Config struct {
	Addrs     []string `json:"addrs" yaml:"addrs"`
	Password  string   `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int      `json:"db,omitempty" yaml:"db,omitempty"`
	Namespace string   `json:"namespace" yaml:"namespace"`
}

// NewClient creates a universal (single, sentinel or cluster) client.
func NewClient(conf Config) rd.UniversalClient {
	return rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

// NamespaceKey joins args under the namespace prefix.
func NamespaceKey(namespace string, args ...string) string {
	return fmt.Sprintf("%s:%s", namespace, strings.Join(args, ":"))
}
