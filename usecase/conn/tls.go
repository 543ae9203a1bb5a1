package conn

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// TLSConfig contains TLS configuration for connecting to brokers.
type TLSConfig struct {
	// CertificatePath contains the path to the certificate (.crt or .pem file)
	CertificatePath string `help:"Path to certificate file."`
	// CertificateKeyPath contains the path to the certificate key (.key file)
	CertificateKeyPath string `help:"Path to certificate key file."`
	// CACertPath is the path to a CA certificate (.crt or .pem file)
	CACertPath string `help:"Path to CA certificate file."`
	// SkipVerify disables verification of server certificates.
	SkipVerify bool `help:"Disables verification of server certificates."`
}

// keypairReloader serves the most recently loaded client certificate and
// reloads it from disk on SIGHUP.
type keypairReloader struct {
	certMu   sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

func newKeypairReloader(certPath, keyPath string, log hashpipe.Logger) (*keypairReloader, error) {
	result := &keypairReloader{
		certPath: certPath,
		keyPath:  keyPath,
	}
	if err := result.maybeReload(); err != nil {
		return nil, err
	}
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)
		for range c {
			log.Printf("received SIGHUP, reloading TLS certificate and key from %q and %q", certPath, keyPath)
			if err := result.maybeReload(); err != nil {
				log.Printf("keeping old TLS certificate because the new one could not be loaded: %v", err)
			}
		}
	}()
	return result, nil
}

func (kpr *keypairReloader) maybeReload() error {
	newCert, err := tls.LoadX509KeyPair(kpr.certPath, kpr.keyPath)
	if err != nil {
		return err
	}
	kpr.certMu.Lock()
	defer kpr.certMu.Unlock()
	kpr.cert = &newCert
	return nil
}

func (kpr *keypairReloader) getClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	kpr.certMu.RLock()
	defer kpr.certMu.RUnlock()
	return kpr.cert, nil
}

// Config builds a *tls.Config from c. It returns nil when no TLS options are
// set, meaning plaintext connections.
func (c TLSConfig) Config(log hashpipe.Logger) (*tls.Config, error) {
	if c.CertificatePath == "" && c.CACertPath == "" && !c.SkipVerify {
		return nil, nil
	}
	conf := &tls.Config{
		InsecureSkipVerify: c.SkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if c.CertificatePath != "" {
		if c.CertificateKeyPath == "" {
			return nil, errors.New("certificate given without a key")
		}
		kpr, err := newKeypairReloader(c.CertificatePath, c.CertificateKeyPath, log)
		if err != nil {
			return nil, errors.Wrap(err, "loading keypair")
		}
		conf.GetClientCertificate = kpr.getClientCertificate
	}
	if c.CACertPath != "" {
		b, err := ioutil.ReadFile(c.CACertPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading tls ca key")
		}
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(b); !ok {
			return nil, errors.New("error parsing CA certificate")
		}
		conf.RootCAs = certPool
	}
	return conf, nil
}
