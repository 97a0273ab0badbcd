package reasoner

// The RDF/RDFS/OWL vocabulary IRIs the rule set reasons over. Spelled
// out in full rather than imported from anywhere, since no pack library
// ships these as constants — it's a dozen fixed strings, not a
// dependency concern.
const (
	rdfType           = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsSubClassOf    = "http://www.w3.org/2000/01/rdf-schema#subClassOf"
	rdfsSubPropertyOf = "http://www.w3.org/2000/01/rdf-schema#subPropertyOf"
	rdfsDomain        = "http://www.w3.org/2000/01/rdf-schema#domain"
	rdfsRange         = "http://www.w3.org/2000/01/rdf-schema#range"
	owlTransitiveProp = "http://www.w3.org/2002/07/owl#TransitiveProperty"
	owlSymmetricProp  = "http://www.w3.org/2002/07/owl#SymmetricProperty"
	owlInverseOf      = "http://www.w3.org/2002/07/owl#inverseOf"
	owlSameAs         = "http://www.w3.org/2002/07/owl#sameAs"
	owlEquivalentClass = "http://www.w3.org/2002/07/owl#equivalentClass"
	owlEquivalentProp   = "http://www.w3.org/2002/07/owl#equivalentProperty"
)
