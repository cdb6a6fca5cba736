package sasl

import "bytes"

// plainSuccess is the payload returned after a successful PLAIN exchange.
var plainSuccess = []byte("Authenticated")

// verifyPlain checks a PLAIN message "authzid NUL authcid NUL password".
// The authzid is ignored. Anything other than exactly three fields fails.
func verifyPlain(creds Credentials, msg []byte) bool {
	fields := bytes.Split(msg, []byte{0})
	if len(fields) != 3 {
		return false
	}
	return string(fields[1]) == creds.Username && string(fields[2]) == creds.Password
}

// PlainMessage builds the initial PLAIN response for a client.
func PlainMessage(authzid, username, password string) []byte {
	var b bytes.Buffer
	b.WriteString(authzid)
	b.WriteByte(0)
	b.WriteString(username)
	b.WriteByte(0)
	b.WriteString(password)
	return b.Bytes()
}
