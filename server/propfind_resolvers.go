package server

import (
	"github.com/samber/mo"

	"remdav/internal/xml/propfind"
	"remdav/internal/xml/props"
	"remdav/storage"
)

// Resolver resolves a single property in the given environment.
type Resolver func(env *propEnv) mo.Result[props.Property]

// propEnv caches the collection and object lookups a resolver table
// shares while answering one response.
type propEnv struct {
	h   *Handler
	res Resource

	preload    *storage.Object
	collection *storage.Collection
	object     *storage.Object
}

func newPropEnv(h *Handler, res Resource, preload *storage.Object) *propEnv {
	return &propEnv{h: h, res: res, preload: preload}
}

func (e *propEnv) GetCollection() (*storage.Collection, error) {
	if e.collection != nil {
		return e.collection, nil
	}
	col, _, err := e.h.Registry.FindCollection(e.res.CollectionPath)
	if err != nil {
		return nil, err
	}
	e.collection = col
	return e.collection, nil
}

func (e *propEnv) GetObject() (*storage.Object, error) {
	if e.object != nil {
		return e.object, nil
	}
	if e.preload != nil {
		e.object = e.preload
		return e.object, nil
	}
	obj, err := e.h.Registry.GetObject(e.res.CollectionPath, e.res.ObjectID)
	if err != nil {
		return nil, err
	}
	e.object = obj
	return e.object, nil
}

func ok(p props.Property) mo.Result[props.Property] {
	return mo.Ok(p)
}

func notFound() mo.Result[props.Property] {
	return mo.Err[props.Property](propfind.ErrNotFound)
}

func internalErr() mo.Result[props.Property] {
	return mo.Err[props.Property](propfind.ErrInternal)
}

// resolveWith dispatches the requested properties through the table.
func resolveWith(env *propEnv, resolvers map[string]Resolver, req propfind.ResponseMap) propfind.ResponseMap {
	for key := range req {
		if r, ok := resolvers[key]; ok {
			req[key] = r(env)
		} else {
			req[key] = mo.Err[props.Property](propfind.ErrNotFound)
		}
	}
	return req
}

// Resolvers every resource type shares.
var commonResolvers = map[string]Resolver{
	"owner": func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.Owner{Value: env.h.principalPath(env.res.UserID)})
	},
	"current-user-principal": func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.CurrentUserPrincipal{Value: env.h.principalPath(env.res.UserID)})
	},
	"principal-url": func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.PrincipalURL{Value: env.h.principalPath(env.res.UserID)})
	},
	"calendar-home-set": func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.CalendarHomeSet{Href: env.h.principalPath(env.res.UserID)})
	},
	"addressbook-home-set": func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.AddressbookHomeSet{Href: env.h.principalPath(env.res.UserID)})
	},
	"calendar-user-address-set": func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.CalendarUserAddressSet{
			Addresses: []string{env.h.principalPath(env.res.UserID)},
		})
	},
	"current-user-privilege-set": func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.CurrentUserPrivilegeSet{Privileges: []string{"read", "write"}})
	},
	"supported-report-set": func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.SupportedReportSet{Reports: []props.ReportType{
			props.ReportTypeCalendarQuery,
			props.ReportTypeCalendarMultiget,
			props.ReportTypeAddressbookQuery,
			props.ReportTypeAddressbookMultiget,
		}})
	},
}

// Service root resolvers. The root only advertises where the principal
// and home sets live.
var serviceRootResolvers = func() map[string]Resolver {
	m := map[string]Resolver{}
	m["displayname"] = func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.DisplayName{Value: "remdav"})
	}
	m["resourcetype"] = func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.Resourcetype{Type: props.ResourceHomeSet})
	}
	m["current-user-principal"] = commonResolvers["current-user-principal"]
	m["principal-url"] = commonResolvers["principal-url"]
	m["calendar-home-set"] = commonResolvers["calendar-home-set"]
	m["addressbook-home-set"] = commonResolvers["addressbook-home-set"]
	m["current-user-privilege-set"] = func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.CurrentUserPrivilegeSet{Privileges: []string{"read"}})
	}
	return m
}()

// Principal resolvers. The principal doubles as the home set of both
// the calendar and the addressbook tree, matching the flat layout of
// the backing files.
var principalResolvers = func() map[string]Resolver {
	m := map[string]Resolver{}
	for k, v := range commonResolvers {
		m[k] = v
	}
	m["displayname"] = func(env *propEnv) mo.Result[props.Property] {
		return ok(&props.DisplayName{Value: env.res.UserID})
	}
	m["resourcetype"] = func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.Resourcetype{Type: props.ResourcePrincipal})
	}
	m["getcontenttype"] = func(_ *propEnv) mo.Result[props.Property] { return notFound() }
	return m
}()

// Collection resolvers.
var collectionResolvers = func() map[string]Resolver {
	m := map[string]Resolver{}
	for k, v := range commonResolvers {
		m[k] = v
	}
	m["displayname"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil {
			return internalErr()
		}
		return ok(&props.DisplayName{Value: col.DisplayName})
	}
	m["resourcetype"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil {
			return internalErr()
		}
		if col.Kind == storage.KindAddressBook {
			return ok(&props.Resourcetype{Type: props.ResourceAddressbook})
		}
		return ok(&props.Resourcetype{Type: props.ResourceCalendar})
	}
	m["getctag"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || col.CTag == "" {
			return notFound()
		}
		return ok(&props.GetCTag{Value: col.CTag})
	}
	m["getlastmodified"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || col.LastModified.IsZero() {
			return notFound()
		}
		return ok(&props.GetLastModified{Value: col.LastModified})
	}
	m["getetag"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || col.CTag == "" {
			return notFound()
		}
		return ok(&props.GetEtag{Value: `"` + col.CTag + `"`})
	}
	m["getcontenttype"] = func(_ *propEnv) mo.Result[props.Property] { return notFound() }
	m["calendar-color"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || col.Color == "" {
			return notFound()
		}
		return ok(&props.CalendarColor{Value: col.Color})
	}
	m["supported-calendar-component-set"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || len(col.SupportedComponents) == 0 {
			return notFound()
		}
		return ok(&props.SupportedCalendarComponentSet{Components: col.SupportedComponents})
	}
	m["supported-calendar-data"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || col.Kind != storage.KindCalendar {
			return notFound()
		}
		return ok(&props.SupportedCalendarData{ContentType: "text/calendar", Version: "2.0"})
	}
	m["supported-address-data"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil || col.Kind != storage.KindAddressBook {
			return notFound()
		}
		return ok(&props.SupportedAddressData{ContentType: "text/vcard", Version: "4.0"})
	}
	m["max-resource-size"] = func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.MaxResourceSize{Value: 10485760})
	}
	m["supported-report-set"] = func(env *propEnv) mo.Result[props.Property] {
		col, err := env.GetCollection()
		if err != nil {
			return internalErr()
		}
		if col.Kind == storage.KindAddressBook {
			return ok(&props.SupportedReportSet{Reports: []props.ReportType{
				props.ReportTypeAddressbookQuery,
				props.ReportTypeAddressbookMultiget,
			}})
		}
		return ok(&props.SupportedReportSet{Reports: []props.ReportType{
			props.ReportTypeCalendarQuery,
			props.ReportTypeCalendarMultiget,
		}})
	}
	return m
}()

// Object resolvers.
var objectResolvers = func() map[string]Resolver {
	m := map[string]Resolver{}
	for k, v := range commonResolvers {
		m[k] = v
	}
	m["displayname"] = func(_ *propEnv) mo.Result[props.Property] { return notFound() }
	m["resourcetype"] = func(_ *propEnv) mo.Result[props.Property] {
		return ok(&props.Resourcetype{Type: props.ResourceObject})
	}
	m["getetag"] = func(env *propEnv) mo.Result[props.Property] {
		obj, err := env.GetObject()
		if err != nil || obj.ETag == "" {
			return notFound()
		}
		return ok(&props.GetEtag{Value: obj.ETag})
	}
	m["getlastmodified"] = func(env *propEnv) mo.Result[props.Property] {
		obj, err := env.GetObject()
		if err != nil || obj.LastModified.IsZero() {
			return notFound()
		}
		return ok(&props.GetLastModified{Value: obj.LastModified})
	}
	m["getcontenttype"] = func(env *propEnv) mo.Result[props.Property] {
		obj, err := env.GetObject()
		if err != nil {
			return notFound()
		}
		if obj.Card != nil {
			return ok(&props.GetContentType{Value: "text/vcard; charset=utf-8"})
		}
		return ok(&props.GetContentType{Value: "text/calendar; charset=utf-8"})
	}
	m["calendar-data"] = func(env *propEnv) mo.Result[props.Property] {
		obj, err := env.GetObject()
		if err != nil || obj.Event == nil {
			return notFound()
		}
		ics, err := storage.EventToICS(obj.Event)
		if err != nil {
			env.h.logger.Error().Err(err).Str("uid", env.res.ObjectID).
				Msg("failed to serialize calendar object")
			return internalErr()
		}
		return ok(&props.CalendarData{ICal: ics})
	}
	m["address-data"] = func(env *propEnv) mo.Result[props.Property] {
		obj, err := env.GetObject()
		if err != nil || obj.Card == nil {
			return notFound()
		}
		vcf, err := storage.CardToVCF(obj.Card)
		if err != nil {
			env.h.logger.Error().Err(err).Str("uid", env.res.ObjectID).
				Msg("failed to serialize contact")
			return internalErr()
		}
		return ok(&props.AddressData{VCard: vcf})
	}
	return m
}()

// resolvePropfind fills the ResponseMap for the resource type.
func (h *Handler) resolvePropfind(req propfind.ResponseMap, res Resource, preload *storage.Object) propfind.ResponseMap {
	env := newPropEnv(h, res, preload)
	var table map[string]Resolver
	switch res.ResourceType {
	case storage.ResourceServiceRoot:
		table = serviceRootResolvers
	case storage.ResourcePrincipal:
		table = principalResolvers
	case storage.ResourceCollection:
		table = collectionResolvers
	case storage.ResourceObject:
		table = objectResolvers
	default:
		table = map[string]Resolver{}
	}
	return resolveWith(env, table, req)
}
