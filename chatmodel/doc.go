// Package chatmodel carries the per request chat context.
package chatmodel
