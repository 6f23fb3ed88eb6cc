// Package docdb stores scored transactions in the Mongo-compatible document database.
package docdb

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// clusterSecret is the shape of the database credentials secret.
type clusterSecret struct {
	Host     string      `json:"host"`
	Port     interface{} `json:"port"`
	Username string      `json:"username"`
	Password string      `json:"password"`
}

// BuildURI builds a connection string from the JSON credentials secret.
// The password is escaped; replica set and TLS follow cfg.
func BuildURI(secret string, cfg *config.DocumentDBConfig) (string, error) {
	var s clusterSecret
	if err := json.Unmarshal([]byte(secret), &s); err != nil {
		return "", exception.NewValidationError("docdb", "malformed database secret", err)
	}
	if s.Host == "" || s.Username == "" {
		return "", exception.NewValidationError("docdb", "database secret lacks host or username", nil)
	}
	port := "27017"
	if s.Port != nil {
		port = fmt.Sprint(s.Port)
	}

	q := url.Values{}
	q.Set("tls", fmt.Sprint(cfg.TLS))
	if cfg.ReplicaSet != "" {
		q.Set("replicaSet", cfg.ReplicaSet)
	}
	q.Set("readPreference", "secondaryPreferred")
	q.Set("retryWrites", "false")

	u := url.URL{
		Scheme:   "mongodb",
		User:     url.UserPassword(s.Username, s.Password),
		Host:     s.Host + ":" + port,
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}
