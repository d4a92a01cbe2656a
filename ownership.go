package syncra

// SetOwnership transfers or adjusts authority over an object.
//
// When the local peer owns the object and the new owner differs, the record
// switches to the given role (which must not be OwnedAuthoritative), the
// owner frame is reset to 1 so the first update from the new owner always
// passes the monotonicity check, and a role message is emitted. When the
// local peer does not own the object only the local role changes; no
// message is sent. With hierarchical set the change walks every registry
// record parented to this object.
func (r *Replicator) SetOwnership(obj Object, ownerClientID uint32, localRole Role, hierarchical bool) {
	if obj == nil || !r.network.Online() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setOwnershipLocked(obj, ownerClientID, localRole, hierarchical)
}

func (r *Replicator) setOwnershipLocked(obj Object, ownerClientID uint32, localRole Role, hierarchical bool) {
	item, ok := r.objects[obj.ID()]
	if !ok {
		// The object may still be sitting in the spawn queue; keep the
		// override on the intent so the drain applies it.
		for _, e := range r.spawnQueue {
			if e.obj.ID() == obj.ID() {
				e.hasOwnership = true
				e.hierarchical = hierarchical
				e.ownerClientID = ownerClientID
				e.role = localRole
				break
			}
		}
		return
	}

	localID := r.network.LocalClientID()
	if item.ownerClientID == localID {
		if item.ownerClientID != ownerClientID {
			// Handing authority away.
			if localRole == RoleOwnedAuthoritative {
				r.log.Printf("[syncra] rejecting ownership change of %s: cannot keep authoritative role after handoff", item.objectID)
				return
			}
			item.ownerClientID = ownerClientID
			item.lastOwnerFrame = 1
			item.role = localRole
			r.sendRoleMessage(item, noClient)
		} else if localRole != RoleOwnedAuthoritative {
			r.log.Printf("[syncra] rejecting role change of %s: owner keeps the authoritative role", item.objectID)
			return
		}
	} else {
		// Not the owner: only the local role may change.
		if localRole == RoleOwnedAuthoritative {
			r.log.Printf("[syncra] rejecting role change of %s: local peer is not the owner", item.objectID)
			return
		}
		item.role = localRole
	}

	if hierarchical {
		for _, child := range r.objects {
			if child.parentID != item.objectID {
				continue
			}
			if childObj := child.get(r.world); childObj != nil {
				r.setOwnershipLocked(childObj, ownerClientID, localRole, true)
			}
		}
	}
}
