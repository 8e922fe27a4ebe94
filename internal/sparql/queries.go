package sparql

import (
	"fmt"
	"strings"
)

// Query kinds, used as metric labels and in error messages.
const (
	KindComponents        = "components"
	KindEntityList        = "entity_list"
	KindComponentStats    = "component_stats"
	KindSlipperyTracks    = "slippery_tracks"
	KindSlipLevels        = "slip_levels"
	KindTrackSlipperiness = "track_slipperiness"
	KindCups              = "cups"
	KindCupTracks         = "cup_tracks"
	KindPlatforms         = "platforms"
	KindPlatformTracks    = "platform_tracks"
	KindSlipClassTracks   = "slip_class_tracks"
)

const (
	prefixRDF  = "PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>"
	prefixRDFS = "PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>"
)

// Queries builds the SELECT queries the catalog issues against one ontology
// namespace.
type Queries struct {
	ns string
}

func NewQueries(namespace string) Queries {
	return Queries{ns: namespace}
}

func (q Queries) Namespace() string { return q.ns }

// IRI expands a local name in the ontology namespace.
func (q Queries) IRI(local string) string { return q.ns + local }

func (q Queries) header(extra ...string) string {
	lines := append([]string{fmt.Sprintf("PREFIX mk: <%s>", q.ns)}, extra...)
	return strings.Join(lines, "\n") + "\n"
}

// labelOrLocal binds ?name to the rdfs:label of ?subject, or to the IRI
// text after the namespace when no label exists.
func labelOrLocal(subject, name string) string {
	return fmt.Sprintf(`OPTIONAL { ?%[1]s rdfs:label ?%[2]s_label . }
  BIND(COALESCE(?%[2]s_label, STRAFTER(STR(?%[1]s), STR(mk:))) AS ?%[2]s)`, subject, name)
}

const statFilter = `FILTER(STRSTARTS(STR(?statProperty), STR(mk:has)) && ?statProperty != mk:isDLC)`

// ComponentsWithStats returns one row per entity/stat pair for every
// individual of class typ. Entities without stats produce one unbound row.
// Variables: entityUri, entityName, statProperty, statValue.
func (q Queries) ComponentsWithStats(typ string) string {
	return q.header(prefixRDF, prefixRDFS) + fmt.Sprintf(`SELECT ?entityUri ?entityName ?statProperty ?statValue WHERE {
  ?entityUri rdf:type mk:%s .
  %s
  OPTIONAL {
    ?entityUri ?statProperty ?statValue .
    %s
  }
} ORDER BY ?entityName ?statProperty`, typ, labelOrLocal("entityUri", "entityName"), statFilter)
}

// EntityList returns the individuals of class typ.
// Variables: entityUri, entityName.
func (q Queries) EntityList(typ string) string {
	return q.header(prefixRDF, prefixRDFS) + fmt.Sprintf(`SELECT DISTINCT ?entityUri ?entityName WHERE {
  ?entityUri rdf:type mk:%s .
  %s
} ORDER BY ?entityName`, typ, labelOrLocal("entityUri", "entityName"))
}

// ComponentStats returns the stats of one component of class typ. A
// component of another class yields no rows. The IRI must have passed
// ValidateIRI. Variables: statProperty, statValue.
func (q Queries) ComponentStats(componentIRI, typ string) string {
	return q.header(prefixRDF) + fmt.Sprintf(`SELECT ?statProperty ?statValue WHERE {
  <%[1]s> rdf:type mk:%[2]s .
  <%[1]s> ?statProperty ?statValue .
  %[3]s
}`, componentIRI, typ, statFilter)
}

// SlipperyTracks returns tracks that have a slipperiness profile.
// Variables: trackUri, trackName, slipperinessProfile.
func (q Queries) SlipperyTracks() string {
	return q.header(prefixRDFS) + fmt.Sprintf(`SELECT ?trackUri ?trackName ?slipperinessProfile WHERE {
  ?trackUri a mk:Track .
  ?trackUri mk:hasSlipperiness ?slipperinessProfile .
  %s
} ORDER BY ?trackName`, labelOrLocal("trackUri", "trackName"))
}

// SlipLevels returns the hasSlipLevelN values of one slipperiness class.
// Variables: prop, value.
func (q Queries) SlipLevels(class string) string {
	return q.header() + fmt.Sprintf(`SELECT ?prop ?value WHERE {
  mk:%s ?prop ?value .
  FILTER(CONTAINS(STR(?prop), "hasSlipLevel"))
}`, class)
}

// TrackSlipperiness returns the slipperiness class of one track.
// Variables: slipperinessProfile.
func (q Queries) TrackSlipperiness(trackIRI string) string {
	return q.header() + fmt.Sprintf(`SELECT ?slipperinessProfile WHERE {
  <%s> mk:hasSlipperiness ?slipperinessProfile .
}`, trackIRI)
}

// Cups lists every cup. Variables: entityUri, entityName.
func (q Queries) Cups() string {
	return q.EntityList("Cup")
}

// CupTracks lists the tracks of one cup. Variables: trackUri, trackName.
func (q Queries) CupTracks(cupIRI string) string {
	return q.header(prefixRDFS) + fmt.Sprintf(`SELECT ?trackUri ?trackName WHERE {
  <%s> mk:hasTrack ?trackUri .
  %s
} ORDER BY ?trackName`, cupIRI, labelOrLocal("trackUri", "trackName"))
}

// Platforms lists every game platform. Variables: entityUri, entityName.
func (q Queries) Platforms() string {
	return q.EntityList("GamePlatform")
}

// PlatformTracks lists tracks that originate on one platform.
// Variables: trackUri, trackName.
func (q Queries) PlatformTracks(platformIRI string) string {
	return q.header(prefixRDFS) + fmt.Sprintf(`SELECT ?trackUri ?trackName WHERE {
  ?trackUri mk:hasOriginPlatform <%s> .
  %s
} ORDER BY ?trackName`, platformIRI, labelOrLocal("trackUri", "trackName"))
}

// SlipClassTracks lists the tracks of one slipperiness class.
// Variables: trackUri, trackName.
func (q Queries) SlipClassTracks(class string) string {
	return q.header(prefixRDFS) + fmt.Sprintf(`SELECT ?trackUri ?trackName WHERE {
  ?trackUri a mk:Track .
  ?trackUri mk:hasSlipperiness mk:%s .
  %s
} ORDER BY ?trackName`, class, labelOrLocal("trackUri", "trackName"))
}
