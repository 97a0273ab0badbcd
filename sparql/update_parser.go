package sparql

// parseUpdateOp parses one update operation per SPEC_FULL.md §4.10:
// INSERT DATA, DELETE DATA, CLEAR, DROP, and the DELETE/INSERT/WHERE
// modify form (either half optional, mirroring the SPARQL 1.1 grammar).
func (p *Parser) parseUpdateOp() (*Update, error) {
	switch {
	case p.isKeyword("INSERT"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if ok, err := p.eatKeyword("DATA"); err != nil {
			return nil, err
		} else if ok {
			data, g, err := p.parseGroundQuads()
			if err != nil {
				return nil, err
			}
			return &Update{Kind: UpdateInsertData, Data: data, GraphTerm: g}, nil
		}
		insertTmpl, err := p.parseTemplateBraces()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("WHERE"); err != nil {
			return nil, err
		}
		where, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &Update{Kind: UpdateModify, InsertTemplate: insertTmpl, Where: where}, nil

	case p.isKeyword("DELETE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if ok, err := p.eatKeyword("DATA"); err != nil {
			return nil, err
		} else if ok {
			data, g, err := p.parseGroundQuads()
			if err != nil {
				return nil, err
			}
			return &Update{Kind: UpdateDeleteData, Data: data, GraphTerm: g}, nil
		}
		deleteTmpl, err := p.parseTemplateBraces()
		if err != nil {
			return nil, err
		}
		var insertTmpl []TriplePattern
		if ok, err := p.eatKeyword("INSERT"); err != nil {
			return nil, err
		} else if ok {
			insertTmpl, err = p.parseTemplateBraces()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expectKeyword("WHERE"); err != nil {
			return nil, err
		}
		where, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &Update{Kind: UpdateModify, DeleteTemplate: deleteTmpl, InsertTemplate: insertTmpl, Where: where}, nil

	case p.isKeyword("CLEAR"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		target, graph, err := p.parseClearDropTarget()
		if err != nil {
			return nil, err
		}
		return &Update{Kind: UpdateClear, Target: target, TargetGraph: graph}, nil

	case p.isKeyword("DROP"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		target, graph, err := p.parseClearDropTarget()
		if err != nil {
			return nil, err
		}
		return &Update{Kind: UpdateDrop, Target: target, TargetGraph: graph}, nil

	default:
		return nil, p.errorf("unexpected-token")
	}
}

func (p *Parser) parseClearDropTarget() (ClearTarget, Term, error) {
	if _, err := p.eatKeyword("SILENT"); err != nil {
		return 0, Term{}, err
	}
	if ok, err := p.eatKeyword("GRAPH"); err != nil {
		return 0, Term{}, err
	} else if ok {
		term, err := p.parseVarOrTerm()
		return ClearGraphIRI, term, err
	}
	if ok, err := p.eatKeyword("DEFAULT"); err != nil {
		return 0, Term{}, err
	} else if ok {
		return ClearDefault, Term{}, nil
	}
	if ok, err := p.eatKeyword("NAMED"); err != nil {
		return 0, Term{}, err
	} else if ok {
		return ClearNamed, Term{}, nil
	}
	if ok, err := p.eatKeyword("ALL"); err != nil {
		return 0, Term{}, err
	} else if ok {
		return ClearAll, Term{}, nil
	}
	return 0, Term{}, p.errorf("unexpected-token")
}

// parseGroundQuads parses a QuadData block: `{ (GRAPH g { triples })?
// triples* }`. Only one GRAPH-wrapped section per operation is modeled
// (see DESIGN.md): practical INSERT/DELETE DATA statements target one
// graph.
func (p *Parser) parseGroundQuads() ([]TriplePattern, Term, error) {
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, Term{}, err
	}
	var data []TriplePattern
	var graphTerm Term
	for p.cur.Kind != TokRBrace {
		if ok, err := p.eatKeyword("GRAPH"); err != nil {
			return nil, Term{}, err
		} else if ok {
			term, err := p.parseVarOrTerm()
			if err != nil {
				return nil, Term{}, err
			}
			graphTerm = term
			if _, err := p.expect(TokLBrace); err != nil {
				return nil, Term{}, err
			}
			for p.cur.Kind != TokRBrace {
				if err := p.parseGroundTriplesInto(&data); err != nil {
					return nil, Term{}, err
				}
				if p.cur.Kind == TokDot {
					if err := p.advance(); err != nil {
						return nil, Term{}, err
					}
				}
			}
			if _, err := p.expect(TokRBrace); err != nil {
				return nil, Term{}, err
			}
		} else {
			if err := p.parseGroundTriplesInto(&data); err != nil {
				return nil, Term{}, err
			}
		}
		if p.cur.Kind == TokDot {
			if err := p.advance(); err != nil {
				return nil, Term{}, err
			}
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, Term{}, err
	}
	return data, graphTerm, nil
}

// parseTemplateBraces parses a `{ triples }` delete/insert template for
// the Modify update form; terms may be variables.
func (p *Parser) parseTemplateBraces() ([]TriplePattern, error) {
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	var tmpl []TriplePattern
	for p.cur.Kind != TokRBrace {
		if err := p.parseGroundTriplesInto(&tmpl); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (p *Parser) parseGroundTriplesInto(data *[]TriplePattern) error {
	subj, err := p.parseVarOrTerm()
	if err != nil {
		return err
	}
	for {
		pred, err := p.parseVarOrTerm()
		if err != nil {
			return err
		}
		for {
			obj, err := p.parseVarOrTerm()
			if err != nil {
				return err
			}
			*data = append(*data, TriplePattern{S: subj, Path: PropertyPath{Kind: PathSimple, IRI: pred}, O: obj})
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return err
				}
				continue
			}
			break
		}
		if p.cur.Kind == TokSemicolon {
			if err := p.advance(); err != nil {
				return err
			}
			if p.cur.Kind == TokDot || p.cur.Kind == TokRBrace {
				break
			}
			continue
		}
		break
	}
	return nil
}
