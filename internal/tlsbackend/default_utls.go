//go:build utls

package tlsbackend

func Default() Backend {
	return UTLS{}
}
