package spc

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Cookie persistence uses the Netscape cookies.txt format so the jar file
// stays interchangeable with the panel's other tooling. The in-memory jar is
// the stdlib one; this file is only the serialization boundary.
//
// Line format: domain \t includeSubdomains \t path \t secure \t expires \t name \t value

const cookieFileHeader = "# Netscape HTTP Cookie File"

// loadCookies restores the persisted jar into the HTTP client's cookie jar.
// A corrupt file is deleted and the process continues with an empty jar.
func (c *Client) loadCookies() {
	f, err := os.Open(c.cookieFile)
	if err != nil {
		return
	}
	defer f.Close() //nolint:errcheck

	byDomain := make(map[string][]*http.Cookie)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cookie, domain, err := parseCookieLine(line)
		if err != nil {
			// Corrupt jar: drop the file and start fresh.
			_ = f.Close()
			_ = os.Remove(c.cookieFile)
			return
		}
		byDomain[domain] = append(byDomain[domain], cookie)
	}

	for domain, cookies := range byDomain {
		u := &url.URL{Scheme: c.hostURL().Scheme, Host: domain, Path: "/"}
		c.jar.SetCookies(u, cookies)
	}
}

func parseCookieLine(line string) (*http.Cookie, string, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, "", fmt.Errorf("cookie line has %d fields, want 7", len(fields))
	}
	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("bad expires field: %w", err)
	}
	cookie := &http.Cookie{
		Name:   fields[5],
		Value:  fields[6],
		Path:   fields[2],
		Secure: fields[3] == "TRUE",
	}
	if expires > 0 {
		cookie.Expires = time.Unix(expires, 0)
	}
	domain := strings.TrimPrefix(fields[0], "#HttpOnly_")
	if domain == "" || cookie.Name == "" {
		return nil, "", fmt.Errorf("cookie line missing domain or name")
	}
	return cookie, domain, nil
}

// saveCookies persists the jar's cookies for the panel host. The file is
// written to a temp file and renamed so a reader never observes a truncated
// jar. Failures are swallowed: cookie persistence is best-effort.
func (c *Client) saveCookies() {
	host := c.hostURL()
	cookies := c.jar.Cookies(host)

	var b strings.Builder
	b.WriteString(cookieFileHeader + "\n")
	secure := "FALSE"
	if host.Scheme == "https" {
		secure = "TRUE"
	}
	for _, cookie := range cookies {
		// The stdlib jar exposes only name and value on read; the rest of
		// the columns describe the panel host itself.
		fmt.Fprintf(&b, "%s\tFALSE\t/\t%s\t0\t%s\t%s\n",
			host.Hostname(), secure, cookie.Name, cookie.Value)
	}
	_ = atomicWrite(c.cookieFile, []byte(b.String()), 0o600)
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp_*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
