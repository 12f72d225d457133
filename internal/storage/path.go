package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

const DefaultReplicaPrefix = "replica"

// BuildReplicaPath returns the object key holding the parquet export of one
// entity, e.g. replica/invoice.parquet.
func BuildReplicaPath(prefix, entityName string) (string, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultReplicaPrefix
	}
	for _, component := range strings.Split(prefix, "/") {
		if err := validatePathComponent(component, "replica prefix"); err != nil {
			return "", err
		}
	}
	if err := validatePathComponent(entityName, "entity name"); err != nil {
		return "", err
	}
	return path.Join(prefix, entityName+".parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
