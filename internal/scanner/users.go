package scanner

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/blackwell-systems/distroshift/internal/distro"
)

// readUsers returns root and the regular accounts from a passwd file.
func readUsers(path string) ([]distro.User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var users []distro.User
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		u, ok := parsePasswdLine(sc.Text())
		if !ok || !(u.UID == 0 || u.Regular()) {
			continue
		}
		users = append(users, u)
	}
	return users, sc.Err()
}

func parsePasswdLine(line string) (distro.User, bool) {
	if line == "" || strings.HasPrefix(line, "#") {
		return distro.User{}, false
	}
	parts := strings.Split(line, ":")
	if len(parts) < 7 {
		return distro.User{}, false
	}
	uid, err := strconv.Atoi(parts[2])
	if err != nil {
		return distro.User{}, false
	}
	gid, err := strconv.Atoi(parts[3])
	if err != nil {
		return distro.User{}, false
	}
	return distro.User{
		Name:  parts[0],
		UID:   uid,
		GID:   gid,
		Home:  parts[5],
		Shell: parts[6],
	}, true
}
