package xml

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRequest(t *testing.T, body []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(body))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func TestBuildPropfind(t *testing.T) {
	root := parseRequest(t, BuildPropfind("resourcetype", "displayname", "getctag", "bogus"))
	assert.Equal(t, "propfind", root.Tag)

	prop := root.SelectElement("prop")
	require.NotNil(t, prop)
	assert.NotNil(t, prop.SelectElement("resourcetype"))
	assert.NotNil(t, prop.SelectElement("displayname"))
	assert.NotNil(t, prop.SelectElement("getctag"))
	assert.Len(t, prop.ChildElements(), 3)
}

func TestBuildMkcalendar(t *testing.T) {
	root := parseRequest(t, BuildMkcalendar("Work", "#FF0000"))
	assert.Equal(t, "mkcalendar", root.Tag)

	prop := root.FindElement("./set/prop")
	require.NotNil(t, prop)
	assert.Equal(t, "Work", prop.SelectElement("displayname").Text())
	assert.Equal(t, "#FF0000", prop.SelectElement("calendar-color").Text())
}

func TestBuildMkcalendarWithoutColor(t *testing.T) {
	root := parseRequest(t, BuildMkcalendar("Plain", ""))
	prop := root.FindElement("./set/prop")
	require.NotNil(t, prop)
	assert.Nil(t, prop.SelectElement("calendar-color"))
}

func TestBuildMkcolAddressbook(t *testing.T) {
	root := parseRequest(t, BuildMkcolAddressbook("Friends"))
	assert.Equal(t, "mkcol", root.Tag)

	resType := root.FindElement("./set/prop/resourcetype")
	require.NotNil(t, resType)
	assert.NotNil(t, resType.SelectElement("collection"))
	assert.NotNil(t, resType.SelectElement("addressbook"))
}

func TestBuildProppatch(t *testing.T) {
	root := parseRequest(t, BuildProppatch("Renamed", ""))
	assert.Equal(t, "propertyupdate", root.Tag)

	prop := root.FindElement("./set/prop")
	require.NotNil(t, prop)
	assert.Equal(t, "Renamed", prop.SelectElement("displayname").Text())
	assert.Nil(t, prop.SelectElement("calendar-color"))
}
