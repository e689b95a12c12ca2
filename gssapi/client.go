package gssapi

import (
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/pkg/errors"
)

// ClientConfig names the on-disk Kerberos material needed to build a
// logged-in initiator client: a krb5.conf, a principal of the form
// "user@REALM", and a keytab holding that principal's key.
type ClientConfig struct {
	Krb5ConfPath string
	KeytabPath   string
	Principal    string
}

// NewClient builds and logs in a Kerberos client from ClientConfig, ready
// to hand to Config.Client for a Stream's negotiate().
func NewClient(cfg ClientConfig) (*client.Client, error) {
	user, realm, err := splitPrincipal(cfg.Principal)
	if err != nil {
		return nil, err
	}

	krb5cfg, err := config.Load(cfg.Krb5ConfPath)
	if err != nil {
		return nil, errors.Wrap(err, "gssapi: load krb5.conf")
	}

	kt, err := keytab.Load(cfg.KeytabPath)
	if err != nil {
		return nil, errors.Wrap(err, "gssapi: load keytab")
	}

	cl := client.NewWithKeytab(user, realm, kt, krb5cfg, client.DisablePAFXFAST(true))
	if err := cl.Login(); err != nil {
		return nil, errors.Wrap(err, "gssapi: kerberos login")
	}
	return cl, nil
}

func splitPrincipal(principal string) (user, realm string, err error) {
	parts := strings.SplitN(principal, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("gssapi: principal %q must be of the form user@REALM", principal)
	}
	return parts[0], parts[1], nil
}
