package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
)

const sampleHeader = `/**
 * \file mbedtls_config.h
 */
#ifndef MBEDTLS_CONFIG_H
#define MBEDTLS_CONFIG_H

/**
 * \name SECTION: System support
 */
#define MBEDTLS_HAVE_ASM
//#define MBEDTLS_NO_UDBL_DIVISION
  #define MBEDTLS_SSL_MAX_CONTENT_LEN   16384

/**
 * \name SECTION: Group X
 */
// #define FOO
#define BAR
#define MBEDTLS_MACRO(a, b)   ((a) + (b))
//#define MBEDTLS_A
//#define MBEDTLS_B
//#define OTHER_C

#endif /* MBEDTLS_CONFIG_H */
`

// countingFs counts the files opened for writing.
type countingFs struct {
	afero.Fs
	writes int
}

func (c *countingFs) Create(name string) (afero.File, error) {
	c.writes++
	return c.Fs.Create(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		c.writes++
	}
	return c.Fs.OpenFile(name, flag, perm)
}

func writeTempHeader(t *testing.T, fs afero.Fs, path, content string) string {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp header: %v", err)
	}
	return path
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// loadSample returns a Config over sampleHeader on a counting in-memory fs.
func loadSample(t *testing.T) (*Config, *countingFs, string) {
	t.Helper()
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	path := writeTempHeader(t, fs.Fs, "/include/mbedtls/mbedtls_config.h", sampleHeader)
	cf, err := NewConfigFile(fs, "Mbed TLS", []string{path}, "")
	if err != nil {
		t.Fatalf("NewConfigFile error: %v", err)
	}
	cfg, err := Load([]*ConfigFile{cf})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg, fs, path
}
