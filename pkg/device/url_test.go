package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGenicamURLFile(t *testing.T) {
	u, err := ParseGenicamURL("file:/tmp/camera.xml")
	require.NoError(t, err)
	require.Equal(t, SchemeFile, u.Scheme)
	require.Equal(t, "/tmp/camera.xml", u.Path)
}

func TestParseGenicamURLHTTP(t *testing.T) {
	u, err := ParseGenicamURL("http://10.0.0.5/genicam.xml")
	require.NoError(t, err)
	require.Equal(t, SchemeHTTP, u.Scheme)
	require.Equal(t, "http://10.0.0.5/genicam.xml", u.Path)
}

func TestParseGenicamURLLocal(t *testing.T) {
	u, err := ParseGenicamURL("local:camera.xml;10000;1a2b")
	require.NoError(t, err)
	require.Equal(t, SchemeLocal, u.Scheme)
	require.Equal(t, "camera.xml", u.Path)
	require.Equal(t, uint32(0x10000), u.Address)
	require.Equal(t, uint32(0x1a2b), u.Size)
}

func TestParseGenicamURLLocalDoubleLength(t *testing.T) {
	u, err := ParseGenicamURL("local:camera.xml;10000;1a2b;1a2b")
	require.NoError(t, err)
	require.Equal(t, uint32(0x1a2b), u.Size)
}

func TestParseGenicamURLIsCaseInsensitive(t *testing.T) {
	u, err := ParseGenicamURL("LOCAL:camera.xml;0;10")
	require.NoError(t, err)
	require.Equal(t, SchemeLocal, u.Scheme)
}

func TestParseGenicamURLRejectsUnknownScheme(t *testing.T) {
	_, err := ParseGenicamURL("ftp:camera.xml")
	require.Error(t, err)
}

func TestParseGenicamURLRejectsMissingScheme(t *testing.T) {
	_, err := ParseGenicamURL("camera.xml")
	require.Error(t, err)
}
