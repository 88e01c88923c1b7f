/*
 * Copyright 2017 Kopano and its licensors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License, version 3,
 * as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package config reads the configuration keys of 6.4 from the process
// environment (the config database this core consumes is an external
// collaborator per 1; an env-backed snapshot is this daemon's concrete
// realization of it, mirroring how cmd/konnectd/bootstrap_ldap.go reads
// LDAP_* env vars directly into backend constructor parameters) and
// produces the read-only Config snapshot C9 installs at module init.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// TLSReqcert is the enumerated certificate policy of 4.9/6.4.
type TLSReqcert int

// Known certificate policies.
const (
	TLSReqcertNever TLSReqcert = iota
	TLSReqcertAllow
	TLSReqcertTry
	TLSReqcertDemand
	TLSReqcertHard
)

func parseTLSReqcert(s string) (TLSReqcert, error) {
	switch s {
	case "never":
		return TLSReqcertNever, nil
	case "allow":
		return TLSReqcertAllow, nil
	case "try":
		return TLSReqcertTry, nil
	case "demand", "":
		return TLSReqcertDemand, nil
	case "hard":
		return TLSReqcertHard, nil
	default:
		return 0, fmt.Errorf("unknown tls_reqcert value: %v", s)
	}
}

// TLSConfig turns the policy into a *tls.Config the connection manager can
// hand to the LDAP transport. never/allow/try accept whatever certificate
// the server presents; demand/hard require verification.
func (p TLSReqcert) TLSConfig(serverName string) *tls.Config {
	switch p {
	case TLSReqcertNever, TLSReqcertAllow, TLSReqcertTry:
		return &tls.Config{InsecureSkipVerify: true, ServerName: serverName}
	default:
		return &tls.Config{ServerName: serverName}
	}
}

// AttributeMap is the per-entity-kind mapping of logical attribute name to
// server-side attribute name consumed by the attribute-map resolver (C2,
// 4.2). At minimum name, uid/gid and modstamp must be mapped.
type AttributeMap struct {
	ObjectClass string
	Name        string
	IDAttr      string
	Modstamp    string
	Extra       map[string]string // additional mapped attributes, order-independent

	// UUIDAttr, if set, names the server-side attribute whose value is a
	// binary RFC 4122 UUID (objectGUID on Active Directory, entryUUID on
	// most other LDAP servers) rather than a printable string.
	UUIDAttr string
}

// Domain holds the per-domain configuration keys of 6.4 that gate the ID
// and Auth providers: enumerate, cache_credentials, and the attribute maps.
type Domain struct {
	Name string

	OfflineTimeout     int // seconds
	EnumRefreshTimeout int // seconds
	Enumerate          bool
	CacheCredentials   bool

	TLSReqcert TLSReqcert

	DefaultBindDN       string
	DefaultAuthtokType  string
	DefaultAuthtok      string

	UserMap  AttributeMap
	GroupMap AttributeMap
}

// Config is the read-only snapshot produced by Load, and the back-reference
// to shared services (3, Provider Context) every provider component holds.
type Config struct {
	Domain Domain
	Auth   AuthConfig

	LDAPURI  string
	LDAPBase string

	Logger logrus.FieldLogger
}

// AuthConfig is the process-wide, read-only-after-init Auth Context of 3.
type AuthConfig struct {
	KDCAddr           string
	Realm             string
	TrySimpleUPN      bool
	ChangePWPrincipal string

	// HelperPath is the Child Invocation binary the Auth pipeline forks
	// and execs for every AUTHENTICATE/CHAUTHTOK request (4.7).
	HelperPath string
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return n, nil
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Load reads the configuration keys of 6.4 from the environment and
// validates them, returning Fatal-worthy errors for anything init cannot
// recover from (9's "unknown TLS policy" example).
func Load(logger logrus.FieldLogger) (*Config, error) {
	reqcert, err := parseTLSReqcert(os.Getenv("LDAP_TLS_REQCERT"))
	if err != nil {
		return nil, fmt.Errorf("config: %v", err)
	}

	offlineTimeout, err := envInt("OFFLINE_TIMEOUT", 60)
	if err != nil {
		return nil, fmt.Errorf("config: %v", err)
	}
	enumRefreshTimeout, err := envInt("ENUM_REFRESH_TIMEOUT", 600)
	if err != nil {
		return nil, fmt.Errorf("config: %v", err)
	}

	changepwPrincipal := os.Getenv("KRB5_CHANGEPW_PRINCIPLE")
	if changepwPrincipal == "" {
		changepwPrincipal = "kadmin/changepw"
	}
	realm := os.Getenv("KRB5_REALM")
	if !strings.Contains(changepwPrincipal, "@") && realm != "" {
		changepwPrincipal = changepwPrincipal + "@" + realm
	}

	cfg := &Config{
		LDAPURI:  os.Getenv("LDAP_URI"),
		LDAPBase: os.Getenv("LDAP_BASEDN"),

		Domain: Domain{
			Name: envOrDefault("DOMAIN_NAME", "default"),

			OfflineTimeout:     offlineTimeout,
			EnumRefreshTimeout: enumRefreshTimeout,
			Enumerate:          envBool("ENUMERATE", false),
			CacheCredentials:   envBool("CACHE_CREDENTIALS", false),

			TLSReqcert: reqcert,

			DefaultBindDN:      os.Getenv("LDAP_BINDDN"),
			DefaultAuthtokType: envOrDefault("LDAP_AUTHTOK_TYPE", "password"),
			DefaultAuthtok:     os.Getenv("LDAP_BINDPW"),

			UserMap: AttributeMap{
				ObjectClass: envOrDefault("LDAP_USER_OBJECT_CLASS", "posixAccount"),
				Name:        envOrDefault("LDAP_USER_NAME_ATTR", "uid"),
				IDAttr:      envOrDefault("LDAP_USER_UID_ATTR", "uidNumber"),
				Modstamp:    envOrDefault("LDAP_USER_MODSTAMP_ATTR", "modifyTimestamp"),
				UUIDAttr:    os.Getenv("LDAP_USER_UUID_ATTR"),
			},
			GroupMap: AttributeMap{
				ObjectClass: envOrDefault("LDAP_GROUP_OBJECT_CLASS", "posixGroup"),
				Name:        envOrDefault("LDAP_GROUP_NAME_ATTR", "cn"),
				IDAttr:      envOrDefault("LDAP_GROUP_GID_ATTR", "gidNumber"),
				Modstamp:    envOrDefault("LDAP_GROUP_MODSTAMP_ATTR", "modifyTimestamp"),
				UUIDAttr:    os.Getenv("LDAP_GROUP_UUID_ATTR"),
			},
		},

		Auth: AuthConfig{
			KDCAddr:           os.Getenv("KRB5_KDCIP"),
			Realm:             realm,
			TrySimpleUPN:      envBool("KRB5_TRY_SIMPLE_UPN", false),
			ChangePWPrincipal: changepwPrincipal,
			HelperPath:        envOrDefault("KRB5_AUTH_HELPER", "/usr/libexec/ssspd/krb5_child"),
		},

		Logger: logger,
	}

	return cfg, nil
}

func envOrDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

// ExportEnv installs the environment exports of 6.5 for the helper child to
// inherit, as C9 requires.
func (c *Config) ExportEnv() error {
	if err := os.Setenv("SSSD_REALM", c.Auth.Realm); err != nil {
		return err
	}
	if err := os.Setenv("SSSD_KDC", c.Auth.KDCAddr); err != nil {
		return err
	}
	if err := os.Setenv("SSSD_KRB5_CHANGEPW_PRINCIPLE", c.Auth.ChangePWPrincipal); err != nil {
		return err
	}
	return nil
}
